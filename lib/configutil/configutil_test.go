package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	FolderPath string `json:"folder_path"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		// comments are allowed
		login: "1234567890123",
		password: "secret",
		folder_path: "/Administratif/Ameli",
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{
		Login:      "1234567890123",
		Password:   "secret",
		FolderPath: "/Administratif/Ameli",
	}, cfg)

	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		password: "overridden",
	}`), 0600)
	require.NoError(t, err)

	cfg, err = ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "1234567890123", cfg.Login)
	require.Equal(t, "overridden", cfg.Password)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

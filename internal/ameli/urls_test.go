package ameli

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBillListURL(t *testing.T) {
	portal := Portal{Origin: "https://assure.ameli.fr/"}
	endDate := time.Date(2023, time.July, 14, 0, 0, 0, 0, time.UTC)

	parsed, err := url.Parse(portal.BillListURL(endDate, MonthsBack))
	require.NoError(t, err)
	require.Equal(t, "assure.ameli.fr", parsed.Host)
	require.Equal(t, "/PortailAS/paiements.do", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "afficherPaiementsComplementaires", query.Get("actionEvt"))
	require.Equal(t, "14/01/2023", query.Get("DateDebut"))
	require.Equal(t, "14/07/2023", query.Get("DateFin"))
	require.Equal(t, "tout_selectionner", query.Get("Beneficiaire"))
}

func TestSubtractMonths(t *testing.T) {
	testCases := []struct {
		from     time.Time
		months   int
		expected time.Time
	}{
		{
			from:     time.Date(2023, time.August, 31, 0, 0, 0, 0, time.UTC),
			months:   6,
			expected: time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			from:     time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC),
			months:   6,
			expected: time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			from:     time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC),
			months:   6,
			expected: time.Date(2022, time.September, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, subtractMonths(test.from, test.months))
	}
}

func TestDetailsURL(t *testing.T) {
	parsed, err := url.Parse(DefaultPortal.DetailsURL("4512", ThirdPartyNature, "0", "3"))
	require.NoError(t, err)

	query := parsed.Query()
	require.Equal(t, "chargerDetailPaiements", query.Get("actionEvt"))
	require.Equal(t, "4512", query.Get("idPaiement"))
	require.Equal(t, ThirdPartyNature, query.Get("naturePaiement"))
	require.Equal(t, "0", query.Get("indexGroupe"))
	require.Equal(t, "3", query.Get("indexPaiement"))
}

func TestFileURL(t *testing.T) {
	require.Equal(
		t,
		"https://assure.ameli.fr/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=1",
		FileURL("/PortailAS/PDFServletReleveMensuel.dopdf?idDecompte=1"),
	)
}

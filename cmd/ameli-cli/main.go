package main

import (
	"context"
	"log/slog"

	"ameli-konnector/cmd/ameli-cli/commands"
	"ameli-konnector/lib/osutil"
	"ameli-konnector/lib/telemetry"
)

func main() {
	ctx, stop := osutil.SignalContext(context.Background())
	defer stop()

	tel, err := telemetry.SetupFromEnv(ctx, "ameli-cli")
	if err != nil {
		osutil.Fatal("failed to setup telemetry", err)
	}
	defer func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}()

	commands.ExecuteContext(ctx)
}

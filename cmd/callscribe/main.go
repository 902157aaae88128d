package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/callscribe/pkg/logging"
	"github.com/harunnryd/callscribe/pkg/redact"
	"github.com/harunnryd/callscribe/pkg/scribe"
	"github.com/harunnryd/callscribe/pkg/transports"
)

func main() {
	configPath := flag.String("config", "configs/callscribe.yaml", "path to the config file")
	dialTo := flag.String("dial_to", "", "destination number for an outbound call")
	dialFrom := flag.String("dial_from", "", "caller ID for an outbound call")
	dialURL := flag.String("dial_url", "", "override voice URL for the outbound call")
	flag.Parse()

	cfg, err := scribe.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	logging.InitLogger(logging.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	providers := scribe.NewProviderRegistry()
	registerProviders(providers)

	transport, err := buildTransport(cfg)
	if err != nil {
		slog.Error("transport_init_failed", "error", err)
		os.Exit(1)
	}
	app, err := scribe.NewEngine(scribe.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Transport: transport,
	})
	if err != nil {
		slog.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *dialTo != "" && *dialFrom != "" {
		go func() {
			select {
			case <-app.Ready():
			case <-ctx.Done():
				return
			}
			dialer, ok := transport.(transports.OutboundDialer)
			if !ok {
				slog.Warn("transport_no_outbound_dialer", "transport", transport.Name())
				return
			}
			callSID, err := dialer.Dial(ctx, *dialTo, *dialFrom, *dialURL)
			if err != nil {
				slog.Error("outbound_dial_failed", "error", err)
				return
			}
			slog.Info("outbound_dial_started", "call_sid", callSID, "to", redact.Phone(*dialTo))
		}()
	}

	if err := app.Run(ctx); err != nil {
		slog.Error("callscribe_stopped_with_error", "error", err)
		os.Exit(1)
	}
}

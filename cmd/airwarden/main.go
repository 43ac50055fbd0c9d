package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/lcalzada-xor/airwarden/internal/app"
	"github.com/lcalzada-xor/airwarden/internal/config"
	"github.com/lcalzada-xor/airwarden/internal/telemetry"
)

var version = "dev"

func main() {
	cliApp := &cli.App{
		Name:    "airwarden",
		Usage:   "Wireless recon and attack orchestrator",
		Version: version,
		Flags:   config.Flags(),
		Action:  runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Detect cards, scan and work the attack queue until interrupted",
				Action: runAction,
			},
			cardsCommand(),
			queueCommand(),
			sessionsCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

// setupLogging installs a text handler on terminals and JSON otherwise.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runAction(c *cli.Context) error {
	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}
	setupLogging(cfg.Debug)

	// spans go to stderr only when debugging
	var traceOut io.Writer = io.Discard
	if cfg.Debug {
		traceOut = os.Stderr
	}
	shutdownTracer, err := telemetry.InitTracer(traceOut)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("airwarden starting", "version", version, "interfaces", cfg.Interfaces, "addr", cfg.Addr)
	return application.Run(ctx)
}

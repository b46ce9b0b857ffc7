// Command loanmon monitors an OKX flexible loan: it prices collateral,
// classifies the LTV risk and keeps a snapshot history.
//
// Usage:
//
//	loanmon                       one check, report to stdout
//	loanmon --daemon --web :8080  scheduled checks with SSE stream and /metrics
//	loanmon --history             print stored history and exit
//	loanmon --setup               interactive configuration wizard
//	loanmon --config config.yaml  settings from yaml
//
// Required environment variables (or .env):
//
//	OKX_API_KEY, OKX_SECRET_KEY, OKX_PASSPHRASE
//	OKX_FLAG=1 for demo trading
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/loanmon/config"
	"github.com/vadiminshakov/loanmon/internal"
	"github.com/vadiminshakov/loanmon/internal/report"
	"github.com/vadiminshakov/loanmon/internal/setup"
	"github.com/vadiminshakov/loanmon/internal/web"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Mode.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := newLogger(cfg.Mode.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if !cfg.Credentials.Complete() && !cfg.Mode.History {
		logger.Fatal("OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE environment variables must be set")
	}

	app, err := internal.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize monitor", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close stores", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Mode.History:
		if err := report.Render(os.Stdout, app.Monitor.Report(nil)); err != nil {
			logger.Error("failed to render history", zap.Error(err))
		}
	case cfg.Mode.Daemon:
		runDaemon(ctx, cfg, app, logger)
	default:
		res, err := app.Monitor.RunOnce(ctx)
		if err != nil {
			logger.Error("monitoring run failed", zap.Error(err))
			return
		}
		if err := report.Render(os.Stdout, app.Monitor.Report(res)); err != nil {
			logger.Error("failed to render report", zap.Error(err))
		}
	}
}

func runDaemon(ctx context.Context, cfg config.Config, app *internal.App, logger *zap.Logger) {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.WebAddr != "" {
		srv := web.NewServer(cfg.WebAddr, app.Snapshots, app.Metrics.Handler(), logger)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	g.Go(func() error {
		return app.Monitor.Run(gctx, cfg.Schedule, func(res *internal.RunResult) {
			if err := report.Render(os.Stdout, app.Monitor.Report(res)); err != nil {
				logger.Warn("failed to render report", zap.Error(err))
			}
		})
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("daemon stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

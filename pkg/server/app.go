package server

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/internal/middleware"
	"PolyEdge/internal/service/binance"
	"PolyEdge/internal/services/ledger"
	"PolyEdge/internal/usecase"
	"PolyEdge/pkg/cache"
	pkgch "PolyEdge/pkg/clickhouse"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	pkgkafka "PolyEdge/pkg/kafka"
	applogger "PolyEdge/pkg/logger"
)

const leaseTTL = 30 * time.Second

// Infra holds the optional infrastructure clients the app must close on shutdown.
// Producer and ClickHouse are nil when disabled.
type Infra struct {
	Cache      cache.Service
	Producer   *pkgkafka.Producer
	ClickHouse *pkgch.Client
	Journal    []*middleware.JournalBuffer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	infra      *Infra
	ledger     *ledger.Ledger
	scanner    *usecase.Scanner
	stream     *binance.PriceStream
	httpServer *xhttp.Server
	lease      *lease
}

// New creates a new App. stream and httpServer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	infra *Infra,
	led *ledger.Ledger,
	scanner *usecase.Scanner,
	stream *binance.PriceStream,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		infra:      infra,
		ledger:     led,
		scanner:    scanner,
		stream:     stream,
		httpServer: httpServer,
		lease:      newLease(infra.Cache, cfg.StatePath(), leaseTTL, l),
	}
}

// Status returns the current ledger statistics.
func (a *App) Status() models.LedgerStats {
	return a.ledger.Stats()
}

// RunOnce runs a single scan cycle and shuts down.
func (a *App) RunOnce(ctx context.Context) (usecase.CycleReport, error) {
	if err := a.lease.acquire(ctx); err != nil {
		return usecase.CycleReport{}, err
	}
	defer a.shutdown(context.Background())

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go a.lease.keepAlive(ctx, func() { cancel(ErrLeaseLost) })

	a.startJournal(ctx)
	report, err := a.scanner.RunCycle(ctx)
	if cause := context.Cause(ctx); errors.Is(cause, ErrLeaseLost) {
		return report, cause
	}
	return report, err
}

// Run starts the HTTP server, the price stream and the scanner and blocks
// until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	if err := a.lease.acquire(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go a.lease.keepAlive(ctx, func() { cancel(ErrLeaseLost) })
	a.startJournal(ctx)

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			a.shutdown(context.Background())
			return err
		}
	}

	if a.stream != nil {
		go a.stream.Run(ctx)
		a.l.Info("price stream started", applogger.String("symbol", a.cfg.Feeds.Binance.Symbol))
	}

	stats := a.ledger.Stats()
	a.l.Info("engine started",
		applogger.String("env", a.cfg.Environment),
		applogger.Bool("paper", a.cfg.Trading.Paper),
		applogger.Float64("bankroll", stats.Bankroll),
		applogger.Int("open_positions", stats.OpenPositions))

	done := make(chan error, 1)
	go func() { done <- a.scanner.Run(ctx) }()

	err := <-done
	if err != nil {
		a.l.Error("scanner stopped with error", applogger.Error(err))
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrLeaseLost) {
		err = cause
	} else {
		a.l.Info("shutdown signal received")
	}
	a.shutdown(context.Background())
	return err
}

func (a *App) startJournal(ctx context.Context) {
	for _, b := range a.infra.Journal {
		b.Start(ctx)
	}
}

// shutdown gracefully stops all services. Failures are logged, never fatal.
func (a *App) shutdown(ctx context.Context) {
	a.l.Info("shutting down")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.l.Warn("price stream close error", applogger.Error(err))
		}
	}

	// drain retry buffers before their sinks close
	for _, b := range a.infra.Journal {
		b.Stop()
	}

	if p := a.infra.Producer; p != nil {
		if err := p.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if ch := a.infra.ClickHouse; ch != nil {
		if err := ch.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.lease.release(ctx)
	if err := a.infra.Cache.Close(); err != nil {
		a.l.Warn("cache close error", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
}

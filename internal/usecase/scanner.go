package usecase

import (
	"context"
	"errors"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/internal/services/parser"
	applogger "PolyEdge/pkg/logger"
)

// CycleReport counts what one scan did.
type CycleReport struct {
	Markets    int `json:"markets"`
	Signals    int `json:"signals"`
	Actionable int `json:"actionable"`
	Opened     int `json:"opened"`
	Rejected   int `json:"rejected"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

func (r *CycleReport) add(o CycleReport) {
	r.Markets += o.Markets
	r.Signals += o.Signals
	r.Actionable += o.Actionable
	r.Opened += o.Opened
	r.Rejected += o.Rejected
	r.Skipped += o.Skipped
	r.Errors += o.Errors
}

// Strategy pairs an evaluator with how often it should run.
type Strategy struct {
	Evaluator Evaluator
	Interval  time.Duration
}

// Scanner runs the evaluate → size → execute loop over enabled strategies.
// Markets are evaluated sequentially.
type Scanner struct {
	strategies []Strategy
	trader     *Trader
	archive    domrepo.SignalArchive
	metrics    domrepo.Metrics
	now        func() time.Time
	lastRun    map[string]time.Time
	l          *applogger.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithSignalArchive stores every evaluated signal.
func WithSignalArchive(a domrepo.SignalArchive) ScannerOption {
	return func(s *Scanner) { s.archive = a }
}

// WithScannerClock overrides the time source used for scheduling.
func WithScannerClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

func NewScanner(strategies []Strategy, trader *Trader, metrics domrepo.Metrics, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		strategies: strategies,
		trader:     trader,
		metrics:    metrics,
		now:        time.Now,
		lastRun:    make(map[string]time.Time),
		l:          applogger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger injects a structured logger.
func (s *Scanner) SetLogger(l *applogger.Logger) { s.l = l }

// Interval is the shortest interval among the configured strategies.
func (s *Scanner) Interval() time.Duration {
	var d time.Duration
	for _, st := range s.strategies {
		if st.Interval <= 0 {
			continue
		}
		if d == 0 || st.Interval < d {
			d = st.Interval
		}
	}
	return d
}

// RunCycle scans every strategy once.
func (s *Scanner) RunCycle(ctx context.Context) (CycleReport, error) {
	return s.cycle(ctx, true)
}

// Run scans until ctx is cancelled, each strategy on its own interval.
func (s *Scanner) Run(ctx context.Context) error {
	interval := s.Interval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.l.Info("scanner started",
		applogger.String("mode", s.trader.Mode()),
		applogger.Duration("interval", interval),
		applogger.Int("strategies", len(s.strategies)))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.cycle(ctx, false); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			s.l.Error("scan cycle failed", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			s.l.Info("scanner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) cycle(ctx context.Context, force bool) (CycleReport, error) {
	start := s.now()
	var total CycleReport
	for _, st := range s.strategies {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		name := st.Evaluator.Strategy()
		if !force {
			if last, ok := s.lastRun[name]; ok && start.Sub(last) < st.Interval {
				continue
			}
		}
		s.lastRun[name] = start
		rep, err := s.scanStrategy(ctx, st.Evaluator)
		total.add(rep)
		if err != nil {
			return total, err
		}
	}
	s.metrics.RecordLatency("cycle", s.now().Sub(start).Seconds())
	s.l.Info("scan cycle complete",
		applogger.Int("markets", total.Markets),
		applogger.Int("signals", total.Signals),
		applogger.Int("actionable", total.Actionable),
		applogger.Int("opened", total.Opened),
		applogger.Int("rejected", total.Rejected),
		applogger.Int("errors", total.Errors))
	return total, nil
}

// scanStrategy returns an error only for context cancellation.
func (s *Scanner) scanStrategy(ctx context.Context, ev Evaluator) (CycleReport, error) {
	var rep CycleReport
	name := ev.Strategy()

	start := s.now()
	markets, err := ev.Markets(ctx)
	s.metrics.RecordLatency("markets_"+name, s.now().Sub(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Errors++
		s.metrics.RecordError("discovery")
		s.l.Warn("market discovery failed", applogger.String("strategy", name), applogger.Error(err))
		return rep, nil
	}
	rep.Markets = len(markets)
	s.l.Debug("markets found", applogger.String("strategy", name), applogger.Int("count", len(markets)))

	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		s.scanMarket(ctx, ev, m, &rep)
	}
	return rep, nil
}

func (s *Scanner) scanMarket(ctx context.Context, ev Evaluator, m models.Market, rep *CycleReport) {
	sig, err := ev.Evaluate(ctx, m)
	switch {
	case err == nil:
	case errors.Is(err, parser.ErrUnparseable), errors.Is(err, models.ErrDataUnavailable):
		rep.Skipped++
		s.l.Debug("market skipped", applogger.String("market", m.ID), applogger.Error(err))
		return
	default:
		rep.Errors++
		s.metrics.RecordError("evaluate")
		s.l.Error("market evaluation failed", applogger.String("market", m.ID), applogger.Error(err))
		return
	}

	rep.Signals++
	s.metrics.RecordSignal(sig.Strategy, string(sig.Side), sig.Edge)
	if s.archive != nil {
		if err := s.archive.StoreSignal(ctx, sig); err != nil {
			s.metrics.RecordError("archive")
			s.l.Warn("signal archive failed", applogger.String("market", m.ID), applogger.Error(err))
		}
	}
	s.l.Info("signal",
		applogger.String("market", m.ID),
		applogger.String("question", sig.Question),
		applogger.String("side", string(sig.Side)),
		applogger.Float64("our_prob", sig.OurProb),
		applogger.Float64("market_prob", sig.MarketProb),
		applogger.Float64("edge", sig.Edge),
		applogger.Bool("actionable", sig.Actionable))

	if !sig.Actionable {
		s.metrics.RecordDecision(sig.Strategy, "no_edge")
		return
	}
	rep.Actionable++

	res, err := s.trader.Execute(ctx, sig, m)
	switch {
	case err != nil:
		rep.Errors++
		s.l.Error("trade failed", applogger.String("market", m.ID), applogger.Error(err))
	case res.Position != nil:
		rep.Opened++
	default:
		rep.Rejected++
	}
}

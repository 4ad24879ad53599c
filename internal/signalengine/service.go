// Package signalengine runs the polling cycle: gate on the trading window,
// fetch bars, compute indicators, classify, then notify and log alerts.
package signalengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vwap-alerts/internal/alert"
	"vwap-alerts/internal/indicator"
	"vwap-alerts/internal/logger"
	"vwap-alerts/internal/markethours"
	"vwap-alerts/internal/metrics"
	"vwap-alerts/internal/model"
	"vwap-alerts/internal/notification"
	"vwap-alerts/internal/strategy"
)

// ErrUpstreamUnavailable wraps market data failures other than "no data".
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Outcome labels how a cycle ended.
type Outcome string

const (
	OutcomeOutsideWindow Outcome = "outside_window"
	OutcomeNoData        Outcome = "no_data"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeUndefined     Outcome = "undefined"
	OutcomeNoSignal      Outcome = "no_signal"
	OutcomeAlerted       Outcome = "alerted"
)

// Deps are the collaborators of a Service. Bars, Engine and Classifier are
// required; everything else may be nil.
type Deps struct {
	Bars       model.BarSource
	Quotes     model.QuoteSource
	Engine     *indicator.Engine
	Classifier *strategy.Classifier
	Window     *markethours.Window
	Notifier   notification.Notifier
	AlertLog   model.AlertLog

	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Logger  *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Options tune the cycle and the polling loop.
type Options struct {
	Symbol    string
	EMAPeriod int // alert wording

	PollInterval   time.Duration
	RunOnce        bool
	RestoreFromLog bool

	// FetchTimeout bounds the market data and quote calls of one cycle.
	FetchTimeout time.Duration
	// DisplayLoc is used for alert titles (ET when nil).
	DisplayLoc *time.Location
}

// CycleReport describes one finished cycle.
type CycleReport struct {
	At       time.Time
	Outcome  Outcome
	Snapshot *model.IndicatorSnapshot
	Result   strategy.Result
	Alert    *alert.Alert
	Notify   *notification.Result
	Err      error
}

// Service owns the cycle state. RunCycle calls are serialised, so the
// engine's running EMA and the crossover previous snapshot only change
// inside one critical section.
type Service struct {
	deps Deps
	opts Options
	log  *slog.Logger

	mu sync.Mutex
}

// New validates deps and creates a service.
func New(deps Deps, opts Options) (*Service, error) {
	if deps.Bars == nil || deps.Engine == nil || deps.Classifier == nil {
		return nil, fmt.Errorf("%w: signalengine: bars, engine and classifier are required", indicator.ErrInvalidParameter)
	}
	if opts.Symbol == "" {
		return nil, fmt.Errorf("%w: signalengine: empty symbol", indicator.ErrInvalidParameter)
	}
	if !opts.RunOnce && opts.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: signalengine: poll interval must be positive", indicator.ErrInvalidParameter)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.DisplayLoc == nil {
		opts.DisplayLoc = markethours.ET
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps: deps,
		opts: opts,
		log:  logger.Component(deps.Logger, "signalengine"),
	}, nil
}

// RunCycle executes one cycle at now. Skips are reported through the
// outcome with a nil error; the error is non-nil for upstream failures
// (wrapping ErrUpstreamUnavailable) and for alert log write failures.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (rep CycleReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(s.opts.Symbol, now))
	trace := logger.LogWithTrace(ctx)
	rep.At = now

	windowOpen := s.deps.Window == nil || s.deps.Window.IsOpen(now)
	defer func() {
		rep.Err = err
		s.deps.Metrics.Cycle(string(rep.Outcome))
		s.deps.Metrics.SetWindow(windowOpen)
		s.deps.Health.RecordCycle(now, string(rep.Outcome), windowOpen, err)
	}()

	// 1. gate
	if !windowOpen {
		rep.Outcome = OutcomeOutsideWindow
		s.log.Debug("outside trading window", append(trace,
			slog.String("window", s.deps.Window.String()),
			slog.String("market", markethours.StatusString(now)),
		)...)
		return rep, nil
	}

	// 2. fetch
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	series, err := s.deps.Bars.IntradayBars(fetchCtx, s.opts.Symbol)
	s.deps.Metrics.ObserveFetch(time.Since(start))
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			rep.Outcome = OutcomeNoData
			s.log.Info("no data returned, skipping cycle", append(trace, slog.String("error", err.Error()))...)
			return rep, nil
		}
		rep.Outcome = OutcomeUpstreamError
		s.log.Warn("market data fetch failed", append(trace, slog.String("error", err.Error()))...)
		return rep, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// 3. optional quote
	quote := s.quote(fetchCtx, trace)

	// 4. compute
	start = time.Now()
	snap, err := s.deps.Engine.Compute(series, quote)
	s.deps.Metrics.ObserveCompute(time.Since(start))
	if err != nil {
		rep.Outcome = OutcomeUndefined
		rep.Result = s.deps.Classifier.Evaluate(snap, err)
		s.log.Info("indicators undefined, skipping cycle",
			append(trace, slog.String("reason", rep.Result.Reason))...)
		return rep, nil
	}
	rep.Snapshot = &snap
	s.deps.Metrics.SetSnapshot(snap.Price, snap.VWAP, snap.EMA)

	// 5. classify
	rep.Result = s.deps.Classifier.Evaluate(snap, nil)
	s.log.Info("cycle computed", append(trace,
		slog.Float64("price", snap.Price),
		slog.Float64("vwap", snap.VWAP),
		slog.Float64("ema", snap.EMA),
		slog.String("state", rep.Result.State.String()),
		slog.Int("signals", len(rep.Result.Signals)),
	)...)
	if !rep.Result.HasSignals() {
		rep.Outcome = OutcomeNoSignal
		return rep, nil
	}

	// 6. compose, notify, log
	a := alert.Compose(s.opts.Symbol, rep.Result, snap, s.opts.EMAPeriod, s.opts.DisplayLoc)
	rep.Alert = &a
	rep.Outcome = OutcomeAlerted
	s.deps.Metrics.Signal(a.State.String())

	if s.deps.Notifier != nil {
		res := notification.Deliver(ctx, s.deps.Notifier, notification.Alert{
			Level:   notification.AlertInfo,
			Title:   a.Title,
			Message: a.Body,
			Symbol:  a.Symbol,
			State:   a.State.String(),
			Signals: a.Signals,
			At:      a.CreatedAt,
		})
		rep.Notify = &res
		if !res.OK {
			s.deps.Metrics.NotifyFailed(res.Notifier)
			s.log.Warn("alert delivery failed", append(trace,
				slog.String("notifier", res.Notifier),
				slog.String("error", res.Err.Error()),
			)...)
		}
	}

	if s.deps.AlertLog != nil {
		if lerr := s.deps.AlertLog.Append(ctx, a.Record(now)); lerr != nil {
			s.deps.Metrics.LogFailed()
			s.log.Error("alert log append failed", append(trace, slog.String("error", lerr.Error()))...)
			return rep, fmt.Errorf("signalengine: alert log: %w", lerr)
		}
	}

	s.log.Info("alert emitted", append(trace, slog.String("id", a.ID), slog.String("state", a.State.String()))...)
	return rep, nil
}

func (s *Service) quote(ctx context.Context, trace []any) *float64 {
	if s.deps.Quotes == nil {
		return nil
	}
	p, err := s.deps.Quotes.LatestPrice(ctx, s.opts.Symbol)
	if err != nil {
		s.log.Warn("quote unavailable, using last close", append(trace, slog.String("error", err.Error()))...)
		return nil
	}
	return &p
}

// Restore seeds a stateful policy from the newest alert log record. It
// reports whether a snapshot was applied.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	reader, ok := s.deps.AlertLog.(model.AlertLogReader)
	if !ok {
		return false, nil
	}
	rec, err := reader.LastRecord(ctx)
	if err != nil {
		return false, fmt.Errorf("signalengine: restore: %w", err)
	}
	if rec == nil || rec.Snapshot == nil {
		return false, nil
	}
	if rec.Symbol != "" && rec.Symbol != s.opts.Symbol {
		s.log.Info("last alert is for another symbol, not restoring", slog.String("symbol", rec.Symbol))
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deps.Classifier.Restore(*rec.Snapshot) {
		return false, nil
	}
	s.log.Info("restored previous snapshot from alert log",
		slog.String("id", rec.ID),
		slog.Time("ts", rec.Snapshot.TS),
	)
	return true, nil
}

// Run executes cycles until ctx is cancelled, or once when RunOnce is set.
// Cycle errors are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.RestoreFromLog {
		if _, err := s.Restore(ctx); err != nil {
			s.log.Warn("restore failed", slog.String("error", err.Error()))
		}
	}

	if s.opts.RunOnce {
		_, err := s.RunCycle(ctx, s.deps.Now())
		return err
	}

	s.log.Info("polling started",
		slog.String("symbol", s.opts.Symbol),
		slog.Duration("interval", s.opts.PollInterval),
		slog.String("policy", s.deps.Classifier.Policy().Name()),
	)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := s.RunCycle(ctx, s.deps.Now()); err != nil {
			s.log.Warn("cycle failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			s.log.Info("polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}

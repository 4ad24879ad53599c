// Package metrics exposes Prometheus metrics and the /healthz endpoint for
// the signal engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal    *prometheus.CounterVec // labels: outcome
	SignalsTotal   *prometheus.CounterVec // labels: state
	NotifyFailures *prometheus.CounterVec // labels: notifier
	LogFailures    prometheus.Counter

	FetchDur   prometheus.Histogram
	ComputeDur prometheus.Histogram

	WindowOpen prometheus.Gauge // 0=closed, 1=open
	LastPrice  prometheus.Gauge
	LastVWAP   prometheus.Gauge
	LastEMA    prometheus.Gauge

	// Quote stream and Redis breaker
	WSReconnects             prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwapalert_cycles_total",
			Help: "Polling cycles by outcome",
		}, []string{"outcome"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwapalert_signals_total",
			Help: "Alerts emitted by classified state",
		}, []string{"state"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vwapalert_notify_failures_total",
			Help: "Failed alert deliveries by notifier",
		}, []string{"notifier"}),
		LogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vwapalert_alert_log_failures_total",
			Help: "Failed alert log appends",
		}),

		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vwapalert_fetch_duration_seconds",
			Help:    "Market data fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vwapalert_compute_duration_seconds",
			Help:    "Indicator compute latency per cycle",
			Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),

		WindowOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapalert_window_open",
			Help: "Trading window state at the last cycle (0=closed, 1=open)",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapalert_last_price",
			Help: "Price used in the last computed snapshot",
		}),
		LastVWAP: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapalert_last_vwap",
			Help: "VWAP of the last computed snapshot",
		}),
		LastEMA: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapalert_last_ema",
			Help: "EMA of the last computed snapshot",
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vwapalert_ws_reconnects_total",
			Help: "Quote stream reconnection attempts",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vwapalert_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.SignalsTotal,
		m.NotifyFailures,
		m.LogFailures,
		m.FetchDur,
		m.ComputeDur,
		m.WindowOpen,
		m.LastPrice,
		m.LastVWAP,
		m.LastEMA,
		m.WSReconnects,
		m.RedisCircuitBreakerState,
	)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Cycle counts one finished cycle.
func (m *Metrics) Cycle(outcome string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

// Signal counts one emitted alert.
func (m *Metrics) Signal(state string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(state).Inc()
}

// NotifyFailed counts a failed delivery.
func (m *Metrics) NotifyFailed(notifier string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(notifier).Inc()
}

// LogFailed counts a failed alert log append.
func (m *Metrics) LogFailed() {
	if m == nil {
		return
	}
	m.LogFailures.Inc()
}

// ObserveFetch records a market data fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
}

// ObserveCompute records an indicator compute duration.
func (m *Metrics) ObserveCompute(d time.Duration) {
	if m == nil {
		return
	}
	m.ComputeDur.Observe(d.Seconds())
}

// SetWindow records the trading window state.
func (m *Metrics) SetWindow(open bool) {
	if m == nil {
		return
	}
	if open {
		m.WindowOpen.Set(1)
	} else {
		m.WindowOpen.Set(0)
	}
}

// SetSnapshot records the last computed indicator values.
func (m *Metrics) SetSnapshot(price, vwap, ema float64) {
	if m == nil {
		return
	}
	m.LastPrice.Set(price)
	m.LastVWAP.Set(vwap)
	m.LastEMA.Set(ema)
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LastCycleAt   time.Time `json:"last_cycle_at"`
	LastOutcome   string    `json:"last_outcome"`
	LastError     string    `json:"last_error"`
	WindowOpen    bool      `json:"window_open"`
	QuoteStream   bool      `json:"quote_stream"`
	LastQuoteAt   time.Time `json:"last_quote_at"`
	RedisEnabled  bool      `json:"redis_enabled"`
	SQLiteEnabled bool      `json:"sqlite_enabled"`

	// Liveness probe results
	RedisConnected  bool      `json:"redis_connected"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// RecordCycle stores the result of the latest cycle.
func (h *HealthStatus) RecordCycle(at time.Time, outcome string, windowOpen bool, err error) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCycleAt = at
	h.LastOutcome = outcome
	h.WindowOpen = windowOpen
	h.LastError = ""
	if err != nil {
		h.LastError = err.Error()
	}
}

// SetQuoteStream marks whether a live quote stream is configured.
func (h *HealthStatus) SetQuoteStream(v bool) {
	h.mu.Lock()
	h.QuoteStream = v
	h.mu.Unlock()
}

// SetLastQuoteTime records the latest streamed trade time.
func (h *HealthStatus) SetLastQuoteTime(t time.Time) {
	h.mu.Lock()
	h.LastQuoteAt = t
	h.mu.Unlock()
}

// EnableRedis marks Redis as a configured dependency.
func (h *HealthStatus) EnableRedis() {
	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = true
	h.mu.Unlock()
}

// EnableSQLite marks SQLite as a configured dependency.
func (h *HealthStatus) EnableSQLite() {
	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = true
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) || h.LastOutcome == "upstream_error" {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}
	quoteAge := ""
	if !h.LastQuoteAt.IsZero() {
		quoteAge = time.Since(h.LastQuoteAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		LastCycleAt     string  `json:"last_cycle_at"`
		LastOutcome     string  `json:"last_outcome"`
		LastError       string  `json:"last_error,omitempty"`
		WindowOpen      bool    `json:"window_open"`
		QuoteStream     bool    `json:"quote_stream"`
		QuoteAge        string  `json:"quote_age,omitempty"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		LastCycleAt:     lastCycle,
		LastOutcome:     h.LastOutcome,
		LastError:       h.LastError,
		WindowOpen:      h.WindowOpen,
		QuoteStream:     h.QuoteStream,
		QuoteAge:        quoteAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, m *Metrics, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	}
}

// Package redis stores the alert log in a Redis stream per symbol.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"vwap-alerts/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultMaxLen = 10000

// Config configures the Redis alert log.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	Symbol string
	MaxLen int64 // approximate stream cap; 0 uses the default

	// OnBreakerChange is called on every circuit breaker transition.
	OnBreakerChange func(to BreakerState)
}

// AlertLog appends alerts to the stream "alerts:<symbol>".
type AlertLog struct {
	client *goredis.Client
	stream string
	maxLen int64
	cb     *CircuitBreaker
}

// StreamKey returns the stream name for symbol.
func StreamKey(symbol string) string {
	return "alerts:" + strings.ToUpper(symbol)
}

// New connects to Redis and pings the server.
func New(cfg Config) (*AlertLog, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}

	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
		if cfg.OnBreakerChange != nil {
			cfg.OnBreakerChange(to)
		}
	}

	log.Printf("[redis] connected to %s (stream %s)", cfg.Addr, StreamKey(cfg.Symbol))
	return &AlertLog{
		client: client,
		stream: StreamKey(cfg.Symbol),
		maxLen: maxLen,
		cb:     cb,
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (a *AlertLog) Client() *goredis.Client { return a.client }

func (a *AlertLog) Name() string { return "redis" }

// Append adds rec to the stream through the circuit breaker.
func (a *AlertLog) Append(ctx context.Context, rec model.AlertRecord) error {
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return a.cb.Execute(func() error {
		return a.client.XAdd(ctx, &goredis.XAddArgs{
			Stream: a.stream,
			MaxLen: a.maxLen,
			Approx: true,
			Values: values,
		}).Err()
	})
}

// LastRecord returns the newest stream entry, or nil when the stream is empty.
func (a *AlertLog) LastRecord(ctx context.Context) (*model.AlertRecord, error) {
	msgs, err := a.client.XRevRangeN(ctx, a.stream, "+", "-", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xrevrange %s: %w", a.stream, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return decodeRecord(msgs[0].Values)
}

// Close closes the client.
func (a *AlertLog) Close() error {
	return a.client.Close()
}

func encodeRecord(rec model.AlertRecord) (map[string]interface{}, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal alert: %w", err)
	}
	return map[string]interface{}{
		"id":    rec.ID,
		"state": rec.State,
		"ts":    rec.TS.UnixMilli(),
		"data":  string(data),
	}, nil
}

func decodeRecord(values map[string]interface{}) (*model.AlertRecord, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("redis: alert entry missing data field")
	}
	var rec model.AlertRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal alert: %w", err)
	}
	return &rec, nil
}

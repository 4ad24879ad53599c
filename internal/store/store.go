// Package store holds the alert log backends and the fan-out writer that
// combines them.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"vwap-alerts/internal/model"
)

// Named is implemented by backends that identify themselves in logs.
type Named interface {
	Name() string
}

// Multi appends every record to all logs. The first log that also implements
// model.AlertLogReader serves LastRecord.
type Multi struct {
	logs []model.AlertLog
}

// NewMulti creates a fan-out alert log. Nil entries are ignored.
func NewMulti(logs ...model.AlertLog) *Multi {
	m := &Multi{}
	for _, l := range logs {
		if l != nil {
			m.logs = append(m.logs, l)
		}
	}
	return m
}

// Len returns the number of configured backends.
func (m *Multi) Len() int { return len(m.logs) }

// Append writes rec to every backend, continuing past failures.
func (m *Multi) Append(ctx context.Context, rec model.AlertRecord) error {
	var errs []error
	for _, l := range m.logs {
		if err := l.Append(ctx, rec); err != nil {
			log.Printf("[store] append to %s failed: %v", name(l), err)
			errs = append(errs, fmt.Errorf("%s: %w", name(l), err))
		}
	}
	return errors.Join(errs...)
}

// LastRecord returns the newest record from the first readable backend.
func (m *Multi) LastRecord(ctx context.Context) (*model.AlertRecord, error) {
	for _, l := range m.logs {
		if r, ok := l.(model.AlertLogReader); ok {
			return r.LastRecord(ctx)
		}
	}
	return nil, nil
}

// Close closes all backends.
func (m *Multi) Close() error {
	var errs []error
	for _, l := range m.logs {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func name(l model.AlertLog) string {
	if n, ok := l.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", l)
}

// Package csvlog appends alerts to a CSV file compatible with the
// "Timestamp,Message" alert log layout, extended with id, state and the
// indicator snapshot.
package csvlog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"vwap-alerts/internal/model"
)

// DefaultPath is the file name used when none is configured.
const DefaultPath = "alerts_log.csv"

const timeLayout = "2006-01-02 15:04:05"

var header = []string{"Timestamp", "Message", "ID", "State", "Snapshot"}

// Log is an append-only CSV alert log.
type Log struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

// New creates a CSV log at path. Timestamps are written in loc (local time
// when nil). The file is created on first append.
func New(path string, loc *time.Location) *Log {
	if path == "" {
		path = DefaultPath
	}
	if loc == nil {
		loc = time.Local
	}
	return &Log{path: path, loc: loc}
}

func (l *Log) Name() string { return "csv" }

// Path returns the file path.
func (l *Log) Path() string { return l.path }

// Append writes one row, writing the header first if the file is new or empty.
func (l *Log) Append(ctx context.Context, rec model.AlertRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csvlog: open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("csvlog: stat: %w", err)
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("csvlog: header: %w", err)
		}
	}

	snap := ""
	if rec.Snapshot != nil {
		snap = string(rec.Snapshot.JSON())
	}
	row := []string{rec.TS.In(l.loc).Format(timeLayout), rec.Message, rec.ID, rec.State, snap}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvlog: write: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvlog: flush: %w", err)
	}
	return nil
}

// LastRecord returns the newest row, or nil when the log is missing or empty.
// Rows written with only Timestamp and Message are returned without id,
// state or snapshot.
func (l *Log) LastRecord(ctx context.Context) (*model.AlertRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csvlog: open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var last []string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvlog: read: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == header[0] {
				continue
			}
		}
		last = row
	}
	if last == nil {
		return nil, nil
	}
	return l.parseRow(last)
}

func (l *Log) parseRow(row []string) (*model.AlertRecord, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("csvlog: short row (%d fields)", len(row))
	}
	ts, err := time.ParseInLocation(timeLayout, row[0], l.loc)
	if err != nil {
		return nil, fmt.Errorf("csvlog: timestamp %q: %w", row[0], err)
	}
	rec := &model.AlertRecord{TS: ts, Message: row[1]}
	if len(row) > 2 {
		rec.ID = row[2]
	}
	if len(row) > 3 {
		rec.State = row[3]
	}
	if len(row) > 4 && row[4] != "" {
		var snap model.IndicatorSnapshot
		if err := json.Unmarshal([]byte(row[4]), &snap); err != nil {
			return nil, fmt.Errorf("csvlog: snapshot: %w", err)
		}
		rec.Snapshot = &snap
	}
	return rec, nil
}

// Close is a no-op; the file is opened per append.
func (l *Log) Close() error { return nil }

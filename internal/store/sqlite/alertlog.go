package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"vwap-alerts/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// AlertLog persists alerts to SQLite for audit and restart recovery.
type AlertLog struct {
	mu sync.Mutex
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (a *AlertLog) DB() *sql.DB { return a.db }

// Open opens (or creates) the alert database at dbPath.
func Open(dbPath string) (*AlertLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened alert log at %s", dbPath)
	return &AlertLog{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			state      TEXT    NOT NULL,
			message    TEXT    NOT NULL,
			snapshot   TEXT,
			ts         INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_symbol_ts ON alerts(symbol, ts);
	`)
	return err
}

func (a *AlertLog) Name() string { return "sqlite" }

// Append inserts one alert row.
func (a *AlertLog) Append(ctx context.Context, rec model.AlertRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var snap sql.NullString
	if rec.Snapshot != nil {
		snap = sql.NullString{String: string(rec.Snapshot.JSON()), Valid: true}
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO alerts (id, symbol, state, message, snapshot, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Symbol, rec.State, rec.Message, snap, rec.TS.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	return nil
}

// LastRecord returns the most recently appended alert, or nil if none.
func (a *AlertLog) LastRecord(ctx context.Context) (*model.AlertRecord, error) {
	recs, err := a.Recent(ctx, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// Recent returns the last limit alerts, newest first.
func (a *AlertLog) Recent(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, symbol, state, message, snapshot, ts FROM alerts ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var out []model.AlertRecord
	for rows.Next() {
		var (
			rec  model.AlertRecord
			snap sql.NullString
			ts   int64
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.State, &rec.Message, &snap, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		rec.TS = time.Unix(0, ts).UTC()
		if snap.Valid {
			var s model.IndicatorSnapshot
			if err := json.Unmarshal([]byte(snap.String), &s); err != nil {
				return nil, fmt.Errorf("unmarshal snapshot: %w", err)
			}
			rec.Snapshot = &s
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

// Close closes the database.
func (a *AlertLog) Close() error {
	return a.db.Close()
}

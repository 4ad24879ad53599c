package csvlog

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vwap-alerts/internal/model"
)

func TestLog_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	l := New(path, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rec := model.AlertRecord{
			ID:      "id",
			TS:      time.Date(2026, 3, 3, 15, i, 0, 0, time.UTC),
			State:   "LONG",
			Message: "📊 SPY Alert\nPrice: 101.00",
		}
		if err := l.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Timestamp" || rows[0][1] != "Message" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][0] != "2026-03-03 15:01:00" {
		t.Errorf("timestamp = %q", rows[2][0])
	}
	if rows[1][1] != "📊 SPY Alert\nPrice: 101.00" {
		t.Errorf("multi-line message mangled: %q", rows[1][1])
	}
}

func TestLog_LastRecord(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "a.csv"), time.UTC)
	ctx := context.Background()

	rec, err := l.LastRecord(ctx)
	if err != nil || rec != nil {
		t.Fatalf("missing file: rec=%v err=%v", rec, err)
	}

	snap := &model.IndicatorSnapshot{TS: time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC), Price: 101, VWAP: 100, EMA: 99.5}
	_ = l.Append(ctx, model.AlertRecord{ID: "a", TS: snap.TS, State: "SHORT", Message: "first"})
	_ = l.Append(ctx, model.AlertRecord{ID: "b", TS: snap.TS.Add(5 * time.Minute), State: "LONG", Message: "second", Snapshot: snap})

	rec, err = l.LastRecord(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "b" || rec.State != "LONG" || rec.Message != "second" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Snapshot == nil || rec.Snapshot.VWAP != 100 || rec.Snapshot.EMA != 99.5 {
		t.Errorf("snapshot = %+v", rec.Snapshot)
	}
	if !rec.TS.Equal(snap.TS.Add(5 * time.Minute)) {
		t.Errorf("ts = %v", rec.TS)
	}
}

func TestLog_ReadsTwoColumnRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	data := "Timestamp,Message\n2026-03-03 10:00:00,\"📊 SPY Alert\nPrice: 1.00\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := New(path, time.UTC).LastRecord(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Message != "📊 SPY Alert\nPrice: 1.00" || rec.ID != "" || rec.Snapshot != nil {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestLog_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	_ = os.WriteFile(path, []byte("Timestamp,Message\n"), 0o644)
	rec, err := New(path, time.UTC).LastRecord(context.Background())
	if err != nil || rec != nil {
		t.Errorf("rec=%v err=%v", rec, err)
	}
}

package redis

import (
	"testing"
	"time"

	"vwap-alerts/internal/model"
)

func TestStreamKey(t *testing.T) {
	if got := StreamKey("spy"); got != "alerts:SPY" {
		t.Errorf("got %s", got)
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	ts := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	rec := model.AlertRecord{
		ID:       "abc",
		TS:       ts,
		Symbol:   "SPY",
		State:    "LONG",
		Message:  "📊 SPY Alert",
		Snapshot: &model.IndicatorSnapshot{TS: ts, Price: 101, VWAP: 100, EMA: 99},
	}

	values, err := encodeRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if values["id"] != "abc" || values["state"] != "LONG" || values["ts"] != ts.UnixMilli() {
		t.Errorf("values = %v", values)
	}

	// go-redis returns stream values as strings
	got, err := decodeRecord(map[string]interface{}{"id": "abc", "data": values["data"]})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID || got.Message != rec.Message || !got.TS.Equal(ts) {
		t.Errorf("decoded = %+v", got)
	}
	if got.Snapshot == nil || got.Snapshot.EMA != 99 {
		t.Errorf("snapshot = %+v", got.Snapshot)
	}
}

func TestDecodeRecord_MissingData(t *testing.T) {
	if _, err := decodeRecord(map[string]interface{}{"id": "x"}); err == nil {
		t.Error("expected error")
	}
}

package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"vwap-alerts/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var base = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func bar(i int, close, vol float64) model.Bar {
	return model.Bar{
		TS:   base.Add(time.Duration(i) * 5 * time.Minute),
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
		Volume: vol,
	}
}

func series(t *testing.T, closes, vols []float64) *model.BarSeries {
	t.Helper()
	bars := make([]model.Bar, len(closes))
	for i := range closes {
		bars[i] = bar(i, closes[i], vols[i])
	}
	s, err := model.NewBarSeries("SPY", bars)
	if err != nil {
		t.Fatalf("build series: %v", err)
	}
	return s
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// VWAP Correctness
// ────────────────────────────────────────────────────────────

func TestVWAP_SingleValue_Formula(t *testing.T) {
	// close basis: (100*10 + 102*30 + 101*60) / 100 = (1000+3060+6060)/100 = 101.2
	s := series(t, []float64{100, 102, 101}, []float64{10, 30, 60})
	got, err := VWAPValue(s, BasisClose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertClose(t, "VWAP close", got, 101.2, 1e-12)
}

func TestVWAP_TypicalBasis(t *testing.T) {
	bars := []model.Bar{
		{TS: base, Open: 10, High: 12, Low: 9, Close: 9, Volume: 100},                      // tp = 10
		{TS: base.Add(5 * time.Minute), Open: 9, High: 15, Low: 9, Close: 12, Volume: 300}, // tp = 12
	}
	s, err := model.NewBarSeries("SPY", bars)
	if err != nil {
		t.Fatal(err)
	}

	typical, err := VWAPValue(s, BasisTypical)
	if err != nil {
		t.Fatal(err)
	}
	// (10*100 + 12*300) / 400 = 4600/400 = 11.5
	assertClose(t, "VWAP typical", typical, 11.5, 1e-12)

	closeOnly, _ := VWAPValue(s, BasisClose)
	// (9*100 + 12*300) / 400 = 4500/400 = 11.25
	assertClose(t, "VWAP close", closeOnly, 11.25, 1e-12)
}

func TestVWAP_OrderInvariant(t *testing.T) {
	closes := []float64{101.37, 99.12, 100.5, 102.25, 98.75, 100.01}
	vols := []float64{1200, 340, 5600, 10, 870, 4300}
	s := series(t, closes, vols)

	got, err := VWAPValue(s, BasisClose)
	if err != nil {
		t.Fatal(err)
	}

	// Sum in reverse order by hand.
	var pv, v float64
	for i := len(closes) - 1; i >= 0; i-- {
		pv += closes[i] * vols[i]
		v += vols[i]
	}
	assertClose(t, "VWAP reversed summation", got, pv/v, 1e-9)
}

func TestVWAP_CumulativeLastEqualsSingle(t *testing.T) {
	s := series(t, []float64{101.37, 99.12, 100.5, 102.25}, []float64{1200, 340, 5600, 10})

	points, err := VWAPSeries(s, BasisTypical)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != s.Len() {
		t.Fatalf("expected %d points, got %d", s.Len(), len(points))
	}
	single, _ := VWAPValue(s, BasisTypical)
	if points[len(points)-1].Value != single {
		t.Errorf("cumulative last %.12f != single %.12f", points[len(points)-1].Value, single)
	}

	// First point is just the first bar's price.
	assertClose(t, "cumulative[0]", points[0].Value, 101.37, 1e-12)
}

func TestVWAP_Empty(t *testing.T) {
	empty, _ := model.NewBarSeries("SPY", nil)
	if _, err := VWAPValue(empty, BasisClose); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := VWAPSeries(empty, BasisClose); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestVWAP_ZeroVolumeIsUndefined(t *testing.T) {
	s := series(t, []float64{100, 101, 102}, []float64{0, 0, 50})

	if _, err := VWAPValue(series(t, []float64{100, 101}, []float64{0, 0}), BasisClose); !errors.Is(err, ErrDivisionUndefined) {
		t.Errorf("expected ErrDivisionUndefined, got %v", err)
	}

	points, err := VWAPSeries(s, BasisClose)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if !errors.Is(points[i].Err, ErrDivisionUndefined) {
			t.Errorf("point %d: expected ErrDivisionUndefined, got %v", i, points[i].Err)
		}
		if points[i].Value != 0 {
			t.Errorf("point %d: undefined value must not be replaced, got %v", i, points[i].Value)
		}
	}
	if points[2].Err != nil {
		t.Errorf("point 2: unexpected error %v", points[2].Err)
	}
	assertClose(t, "point 2", points[2].Value, 102, 1e-12)
}

func TestEachVWAP_StopsEarly(t *testing.T) {
	s := series(t, []float64{100, 101, 102, 103}, []float64{1, 1, 1, 1})
	seen := 0
	err := EachVWAP(s, BasisClose, func(i int, _ VWAPPoint) bool {
		seen++
		return i < 1
	})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 2 {
		t.Errorf("expected iteration to stop after 2 points, got %d", seen)
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// α = 2/(3+1) = 0.5, seeded with the first close
	// 100 → 100
	// 102 → 0.5*102 + 0.5*100   = 101
	// 104 → 0.5*104 + 0.5*101   = 102.5
	// 103 → 0.5*103 + 0.5*102.5 = 102.75
	s := series(t, []float64{100, 102, 104, 103}, []float64{1, 1, 1, 1})
	got, err := EMASeries(s, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{100, 101, 102.5, 102.75}
	for i := range want {
		assertClose(t, "EMA(3)", got[i], want[i], 1e-12)
	}
}

func TestEMA_SingleBarEqualsClose(t *testing.T) {
	for _, p := range []int{1, 9, 50} {
		s := series(t, []float64{123.45}, []float64{10})
		got, err := EMAValue(s, p)
		if err != nil {
			t.Fatal(err)
		}
		if got != 123.45 {
			t.Errorf("period %d: EMA of one bar = %v, want 123.45", p, got)
		}
	}
}

func TestEMA_ConvergesOnConstantSeries(t *testing.T) {
	const period = 9
	closes := []float64{50}
	for i := 0; i < 200; i++ {
		closes = append(closes, 100)
	}
	vols := make([]float64, len(closes))
	s := series(t, closes, vols)

	got, err := EMAValue(s, period)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, "EMA converged", got, 100, 1e-9)

	flat := series(t, closes[1:1+period], vols[:period])
	got, _ = EMAValue(flat, period)
	assertClose(t, "EMA constant", got, 100, 1e-9)
}

func TestEMA_Deterministic(t *testing.T) {
	s := series(t, []float64{101.37, 99.12, 100.5, 102.25, 98.75}, []float64{1, 1, 1, 1, 1})
	a, _ := EMASeries(s, 9)
	b, _ := EMASeries(s, 9)
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			t.Fatalf("bar %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestEMA_InvalidPeriod(t *testing.T) {
	for _, p := range []int{0, -3} {
		if _, err := NewEMA(p); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("period %d: expected ErrInvalidParameter, got %v", p, err)
		}
	}
	s := series(t, []float64{1}, []float64{1})
	if _, err := EMAValue(s, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestEMA_EmptySeries(t *testing.T) {
	empty, _ := model.NewBarSeries("SPY", nil)
	if _, err := EMAValue(empty, 9); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestEMA_Reset(t *testing.T) {
	e, _ := NewEMA(3)
	e.Update(bar(0, 100, 1))
	e.Reset()
	if e.Ready() {
		t.Error("expected not ready after reset")
	}
	e.Update(bar(1, 50, 1))
	if e.Value() != 50 {
		t.Errorf("expected reseed with 50, got %v", e.Value())
	}
	if e.Name() != "EMA_3" {
		t.Errorf("expected name EMA_3, got %s", e.Name())
	}
}

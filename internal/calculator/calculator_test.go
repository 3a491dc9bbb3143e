package calculator

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMASeries(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	s := SMASeries(prices, 3)
	for i := 0; i < 2; i++ {
		if s[i].Valid {
			t.Errorf("position %d should be undefined", i)
		}
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !s[i+2].Valid || !approx(s[i+2].Float64, w) {
			t.Errorf("position %d: got %v, want %v", i+2, s[i+2], w)
		}
	}
}

func TestCalculateSMA_NotEnoughData(t *testing.T) {
	if _, err := CalculateSMA([]float64{1, 2}, 3); err == nil {
		t.Error("expected error for short series")
	}
}

func TestEMASeries_SeededWithFirstClose(t *testing.T) {
	prices := []float64{10, 20, 30}
	s := EMASeries(prices, 20)
	alpha := 2.0 / 21.0
	if s[0] != 10 {
		t.Fatalf("seed: got %v, want 10", s[0])
	}
	e1 := alpha*20 + (1-alpha)*10
	e2 := alpha*30 + (1-alpha)*e1
	if !approx(s[1], e1) || !approx(s[2], e2) {
		t.Errorf("got %v, want [10 %v %v]", s, e1, e2)
	}
}

func TestRSISeries_UndefinedBeforeWindow(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i%3)
	}
	s := RSISeries(prices, 14)
	for i := 0; i < 14; i++ {
		if s[i].Valid {
			t.Errorf("position %d should be undefined", i)
		}
	}
	for i := 14; i < len(prices); i++ {
		if !s[i].Valid {
			t.Errorf("position %d should be defined", i)
		}
	}
}

func TestRSISeries_Bounds(t *testing.T) {
	prices := make([]float64, 300)
	p := 1000.0
	for i := range prices {
		// deterministic zig-zag with drift
		p += math.Sin(float64(i)*0.7)*15 + float64(i%5) - 2
		prices[i] = p
	}
	for i, v := range RSISeries(prices, 14) {
		if v.Valid && (v.Float64 < 0 || v.Float64 > 100) {
			t.Errorf("position %d: RSI %v out of [0,100]", i, v.Float64)
		}
	}
}

func TestRSI_KnownValue(t *testing.T) {
	// 14 changes: seven +2 and seven -1 -> avgGain 1, avgLoss 0.5, RS 2, RSI 66.67
	prices := []float64{100}
	for i := 0; i < 7; i++ {
		prices = append(prices, prices[len(prices)-1]+2, 0)
		prices[len(prices)-1] = prices[len(prices)-2] - 1
	}
	got, err := CalculateRSI(prices, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-200.0/3.0) > 1e-9 {
		t.Errorf("got %v, want 66.67", got)
	}
}

func TestRSI_ZeroLossIs100(t *testing.T) {
	prices := rising(15)
	prices[7] = prices[6] // a flat step inside an otherwise rising window
	got, err := CalculateRSI(prices, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}

func TestRSI_FlatWindowIsUndefined(t *testing.T) {
	if _, err := CalculateRSI(flat(15), 14); !errors.Is(err, ErrFlatWindow) {
		t.Fatalf("got err %v, want ErrFlatWindow", err)
	}

	// falling into a price floor: defined while the drop is in the window,
	// undefined once the window only sees the floor
	prices := append(falling(20), flat(16)...)
	for i := range prices[20:] {
		prices[20+i] = prices[19]
	}
	s := RSISeries(prices, 14)
	if !s[20].Valid || s[20].Float64 != 0 {
		t.Errorf("position 20: got %+v, want 0", s[20])
	}
	if s[33].Valid {
		t.Errorf("position 33: flat window should be undefined, got %v", s[33].Float64)
	}
}

func TestRSI_ZeroGainIs0(t *testing.T) {
	prices := make([]float64, 15)
	for i := range prices {
		prices[i] = 200 - float64(i)
	}
	got, _ := CalculateRSI(prices, 14)
	if got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestCompute_NoLookAhead(t *testing.T) {
	prices := rising(60)
	full := Compute(prices)
	prefix := Compute(prices[:30])
	for i := range prefix {
		if prefix[i] != full[i] {
			t.Fatalf("position %d changed when later data was appended", i)
		}
	}
	if full[18].SMA20.Valid || !full[19].SMA20.Valid {
		t.Error("SMA20 should become defined at position 19")
	}
	if !full[0].EMA20.Valid {
		t.Error("EMA20 should always be defined")
	}
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i)
	}
	return out
}

func flat(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
	}
	return out
}

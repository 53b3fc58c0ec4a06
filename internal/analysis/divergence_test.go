package analysis

import "testing"

func TestCheckDivergenceBearish(t *testing.T) {
	closes := make([]float64, 0, 49)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+float64(i))
	}
	// net higher close while RSI comes off 100
	for _, step := range []float64{-1, 1.5, -1, 1.5, -1, 1.5, -1, 1.5, -1} {
		closes = append(closes, closes[len(closes)-1]+step)
	}

	d := CheckDivergence(klinesFromCloses(closes))
	if d == nil {
		t.Fatal("expected a divergence")
	}
	if d.Kind != DivergenceBearish {
		t.Errorf("kind = %s, want bearish", d.Kind)
	}
	if d.Strength <= 0 {
		t.Errorf("strength = %v, want > 0", d.Strength)
	}
}

func TestCheckDivergenceBullish(t *testing.T) {
	closes := make([]float64, 0, 49)
	for i := 0; i < 40; i++ {
		closes = append(closes, 200-float64(i))
	}
	for _, step := range []float64{1, -1.5, 1, -1.5, 1, -1.5, 1, -1.5, 1} {
		closes = append(closes, closes[len(closes)-1]+step)
	}

	d := CheckDivergence(klinesFromCloses(closes))
	if d == nil || d.Kind != DivergenceBullish {
		t.Fatalf("got %+v, want bullish divergence", d)
	}
}

func TestCheckDivergenceNone(t *testing.T) {
	if d := CheckDivergence(klinesFromCloses(randomWalk(10, 3))); d != nil {
		t.Errorf("short window: got %+v, want nil", d)
	}

	// falling price with falling RSI agrees
	closes := make([]float64, 0, 60)
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, closes[len(closes)-1]-2)
	}
	if d := CheckDivergence(klinesFromCloses(closes)); d != nil {
		t.Errorf("agreeing moves: got %+v, want nil", d)
	}
}

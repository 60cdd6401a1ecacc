package traceenergy

import (
	"math"
	"reflect"
	"testing"
)

func TestSyncBitLevelsMSBFirst(t *testing.T) {
	got := SyncBitLevels(22, 8)
	want := []float64{0, 0, 0, 1, 0, 1, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("levels=%v want %v", got, want)
	}
}

func TestBitSyncPatternRepeatsPerCase(t *testing.T) {
	p := BitSyncPattern(0b1011, 4, 10)
	if p.Len() != 40 || p.Kind != SyncBits {
		t.Fatalf("pattern len=%d kind=%s", p.Len(), p.Kind)
	}
	for j, v := range p.Levels {
		want := []float64{1, 0, 1, 1}[j/10]
		if v != want {
			t.Fatalf("level[%d]=%v want %v", j, v, want)
		}
	}
}

func TestRepeatLevelsFractionalRows(t *testing.T) {
	out := RepeatLevels([]float64{1, 0, 1}, 2.5)
	if len(out) != 8 {
		t.Fatalf("len=%d want 8", len(out))
	}
	// boundaries round to 0, 3, 5, 8
	want := []float64{1, 1, 1, 0, 0, 1, 1, 1}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("levels=%v want %v", out, want)
	}
	if RepeatLevels(nil, 3) != nil || RepeatLevels([]float64{1}, 0) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestConstantSyncPattern(t *testing.T) {
	dur := TransmissionDurationUS(128, 250)
	if dur != 4096 {
		t.Fatalf("duration=%v want 4096", dur)
	}
	p := ConstantSyncPattern(250, dur, 1100, 0.7620745563241412, 0)
	want := int(math.Ceil(250*4096/1100.0 + 250*0.7620745563241412))
	if p.Len() != want {
		t.Fatalf("len=%d want %d", p.Len(), want)
	}
	for _, v := range p.Levels {
		if v != DefaultConstantLevel {
			t.Fatalf("level=%v want %v", v, DefaultConstantLevel)
		}
	}
}

func TestVisualMarkersAlternate(t *testing.T) {
	m := VisualMarkers(9, 12, 2, [2]float64{0.115, 0.12})
	want := []float64{0.115, 0.115, 0.12, 0.12, 0.115, 0.115, 0.12, 0.12}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("markers=%v want %v", m, want)
	}
}

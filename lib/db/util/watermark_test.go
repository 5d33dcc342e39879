package util

import (
	"testing"
)

func TestWatermarkEmpty(t *testing.T) {
	w := NewWatermark()
	if _, ok := w.Low(); ok {
		t.Fatal("empty watermark should not report a low version")
	}
	if w.Len() != 0 {
		t.Errorf("expected no pins, got %d", w.Len())
	}
}

func TestWatermarkPinUnpin(t *testing.T) {
	w := NewWatermark()
	w.Pin(1, 100)
	w.Pin(2, 50)
	w.Pin(3, 200)

	if low, _ := w.Low(); low != 50 {
		t.Errorf("expected low 50, got %d", low)
	}

	if v, ok := w.Unpin(2); !ok || v != 50 {
		t.Errorf("expected to unpin version 50, got %d (%v)", v, ok)
	}
	if low, _ := w.Low(); low != 100 {
		t.Errorf("expected low 100 after unpin, got %d", low)
	}

	if _, ok := w.Unpin(2); ok {
		t.Error("unpinning twice should report false")
	}

	w.Unpin(1)
	w.Unpin(3)
	if _, ok := w.Low(); ok {
		t.Error("watermark should be empty after releasing all pins")
	}
	if w.Total() != 3 {
		t.Errorf("expected 3 pins in total, got %d", w.Total())
	}
}

func TestWatermarkRepin(t *testing.T) {
	w := NewWatermark()
	w.Pin(1, 10)
	w.Pin(2, 20)
	w.Pin(1, 30)

	if low, _ := w.Low(); low != 20 {
		t.Errorf("expected low 20 after moving pin 1, got %d", low)
	}
	if w.Len() != 2 {
		t.Errorf("re-pinning must not add a pin, got %d pins", w.Len())
	}
}

func TestWatermarkManyPins(t *testing.T) {
	w := NewWatermark()
	for i := uint64(1); i <= 1000; i++ {
		w.Pin(i, 2000-i)
	}
	for i := uint64(1000); i > 1; i-- {
		w.Unpin(i)
		low, ok := w.Low()
		if !ok {
			t.Fatalf("unexpected empty watermark at %d", i)
		}
		if want := 2000 - (i - 1); low != want {
			t.Fatalf("after unpinning %d expected low %d, got %d", i, want, low)
		}
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Fatal("empty histogram should report zero sizes")
	}

	for i := 0; i < 10; i++ {
		h.AddSample(10)
	}
	h.AddSample(1000)

	if h.Count() != 11 {
		t.Errorf("expected 11 samples, got %d", h.Count())
	}
	if got := h.MedianEstimate(); got != 8 {
		t.Errorf("expected median estimate 8 (first bucket), got %d", got)
	}
	if got := h.AverageSize(); got != (10*10+1000)/11 {
		t.Errorf("unexpected average %d", got)
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString("node-1", 0) != HashString("node-1", 0) {
		t.Error("hash must be deterministic")
	}
	if HashString("node-1", 0) == HashString("node-2", 0) {
		t.Error("different names should hash differently")
	}
	if HashString("node-1", 0) == HashString("node-1", 1) {
		t.Error("seed must change the hash")
	}
}

package infra

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},  // 64s hits the cap
		{40, 60 * time.Second}, // shift would overflow, still the cap
	}

	for _, tt := range tests {
		if got := DefaultBackoff.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_ConfiguredCap(t *testing.T) {
	b := Backoff{Base: 500 * time.Millisecond, Cap: 5 * time.Second}

	if got := b.Delay(0); got != 500*time.Millisecond {
		t.Errorf("Delay(0) = %s, want 500ms", got)
	}
	if got := b.Delay(2); got != 2*time.Second {
		t.Errorf("Delay(2) = %s, want 2s", got)
	}
	if got := b.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %s, want the 5s cap", got)
	}
}

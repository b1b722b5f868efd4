package task

import (
	"testing"
	"time"
)

func TestComputeBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := 1 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{10, 1 * time.Second},
	}
	for _, tc := range cases {
		if got := ComputeBackoff(tc.attempt, base, max); got != tc.want {
			t.Fatalf("attempt %d: got %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestComputeBackoffEdges(t *testing.T) {
	if got := ComputeBackoff(3, 0, time.Second); got != 0 {
		t.Fatalf("zero base: got %s", got)
	}
	if got := ComputeBackoff(0, 2*time.Second, time.Second); got != time.Second {
		t.Fatalf("base above max: got %s", got)
	}
	if got := ComputeBackoff(3, time.Millisecond, 0); got != 8*time.Millisecond {
		t.Fatalf("uncapped: got %s", got)
	}
}

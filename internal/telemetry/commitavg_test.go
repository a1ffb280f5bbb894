package telemetry

import (
	"testing"
	"time"
)

func TestCommitAverage_DedupAndMean(t *testing.T) {
	avg := newCommitAverage(10)
	avg.observe(1, 100*time.Millisecond)
	avg.observe(2, 200*time.Millisecond)
	avg.observe(2, 300*time.Millisecond) // duplicate height: ignored
	avg.observe(3, 400*time.Millisecond)

	mean, ok := avg.mean()
	if !ok {
		t.Fatal("expected a mean with samples present")
	}
	want := (100 + 200 + 400) * time.Millisecond / 3
	if mean != want {
		t.Fatalf("expected mean %v, got %v", want, mean)
	}
}

func TestCommitAverage_EmptyRingHasNoMean(t *testing.T) {
	avg := newCommitAverage(defaultCommitTimeWindow)
	if _, ok := avg.mean(); ok {
		t.Fatal("expected no mean for an empty ring")
	}
}

func TestCommitAverage_EvictsOldestPastWindow(t *testing.T) {
	avg := newCommitAverage(2)
	avg.observe(1, 100*time.Millisecond)
	avg.observe(2, 200*time.Millisecond)
	avg.observe(3, 300*time.Millisecond) // evicts height 1

	mean, ok := avg.mean()
	if !ok {
		t.Fatal("expected a mean")
	}
	want := (200 + 300) * time.Millisecond / 2
	if mean != want {
		t.Fatalf("expected mean %v, got %v", want, mean)
	}

	// height 1 should be forgotten, so re-observing it is accepted again
	// rather than treated as a dedup no-op against a stale slot.
	avg.observe(1, 999*time.Millisecond)
	if _, dup := avg.seen[1]; !dup {
		t.Fatal("expected height 1 to be re-tracked after eviction")
	}
}

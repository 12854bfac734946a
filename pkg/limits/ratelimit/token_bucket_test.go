package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	tests := []struct {
		name     string
		capacity int64
	}{
		{name: "capacity one", capacity: 1},
		{name: "capacity five", capacity: 5},
		{name: "capacity fifty", capacity: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := NewTokenBucket(tt.capacity, 0.001)

			for i := int64(0); i < tt.capacity; i++ {
				if !tb.Take() {
					t.Fatalf("Take() = false on token %d of %d", i+1, tt.capacity)
				}
			}

			if tb.Take() {
				t.Error("Take() = true after bucket drained")
			}
		})
	}
}

func TestTokenBucketRefill(t *testing.T) {
	// 100 tokens/s so the test refills within a few milliseconds.
	tb := NewTokenBucket(1, 100)

	if !tb.Take() {
		t.Fatal("Take() = false on full bucket")
	}
	if tb.Take() {
		t.Fatal("Take() = true on drained bucket")
	}

	deadline := time.Now().Add(time.Second)
	for !tb.Take() {
		if time.Now().After(deadline) {
			t.Fatal("bucket did not refill within a second")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTokenBucketNextAvailable(t *testing.T) {
	tb := NewTokenBucket(1, 2) // 2 tokens/s: one token every 500ms

	if !tb.Take() {
		t.Fatal("Take() = false on full bucket")
	}

	wait := tb.NextAvailable()
	if wait <= 0 {
		t.Fatalf("NextAvailable() = %v on drained bucket, want > 0", wait)
	}
	if wait > 500*time.Millisecond {
		t.Errorf("NextAvailable() = %v, want <= 500ms at 2 tokens/s", wait)
	}
}

func TestTokenBucketNextAvailableWhenFull(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	if wait := tb.NextAvailable(); wait != 0 {
		t.Errorf("NextAvailable() = %v on full bucket, want 0", wait)
	}
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	tb := NewTokenBucket(2, 1000)

	// Give refill far more time than needed to overfill.
	time.Sleep(20 * time.Millisecond)

	taken := 0
	for tb.Take() {
		taken++
		if taken > 2 {
			break
		}
	}

	if taken != 2 {
		t.Errorf("took %d tokens after idle period, capacity is 2", taken)
	}
}

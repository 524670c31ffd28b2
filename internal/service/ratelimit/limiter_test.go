package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("BTCUSDT", 3, 0.001) {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("expected 3 allowed, got %d", allowed)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("BTCUSDT", 1, 0.001)
	}
	if !l.Allow("ETHUSDT", 1, 0.001) {
		t.Fatal("fresh key must have full capacity")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l := New()
	if !l.Allow("BTCUSDT", 1, 100) {
		t.Fatal("first call must pass")
	}
	if l.Allow("BTCUSDT", 1, 100) {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("BTCUSDT", 1, 100) {
		t.Fatal("bucket should have refilled")
	}
}

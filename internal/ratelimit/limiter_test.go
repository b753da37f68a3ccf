package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAllow_WithinBurst(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewClientLimiter(5, time.Minute, logger)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}

	if limiter.Allow("10.0.0.1") {
		t.Error("request beyond burst should be rejected")
	}
}

func TestAllow_IndependentClients(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewClientLimiter(1, time.Minute, logger)

	if !limiter.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("second client has an independent bucket")
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("first client exhausted its bucket")
	}
}

func TestPrune(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewClientLimiter(10, time.Minute, logger)

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")

	if limiter.Size() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", limiter.Size())
	}

	// Nothing is idle yet
	limiter.Prune(time.Minute)
	if limiter.Size() != 2 {
		t.Errorf("expected 2 tracked clients after no-op prune, got %d", limiter.Size())
	}

	// Everything is idle relative to a zero threshold
	time.Sleep(5 * time.Millisecond)
	limiter.Prune(time.Millisecond)
	if limiter.Size() != 0 {
		t.Errorf("expected 0 tracked clients after prune, got %d", limiter.Size())
	}
}

func TestConcurrentAccess(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	limiter := NewClientLimiter(1000, time.Minute, logger)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				limiter.Allow("10.0.0.1")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

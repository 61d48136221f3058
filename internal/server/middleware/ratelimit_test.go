package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerSecond: 2.0,
		BurstSize:         3,
		CleanupInterval:   1 * time.Minute,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	clientID := "test-client-1"

	for i := 0; i < 3; i++ {
		if !rl.Allow(clientID) {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}

	if rl.Allow(clientID) {
		t.Error("request 4 should be denied (burst exhausted)")
	}

	time.Sleep(550 * time.Millisecond)

	if !rl.Allow(clientID) {
		t.Error("request should be allowed after token refill")
	}
}

func TestRateLimiterDifferentClients(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerSecond: 1.0,
		BurstSize:         2,
		CleanupInterval:   1 * time.Minute,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	client1 := "client-1"
	client2 := "client-2"

	for i := 0; i < 2; i++ {
		if !rl.Allow(client1) {
			t.Errorf("client 1 request %d should be allowed", i+1)
		}
		if !rl.Allow(client2) {
			t.Errorf("client 2 request %d should be allowed", i+1)
		}
	}

	if rl.Allow(client1) {
		t.Error("client 1 should be rate limited")
	}
	if rl.Allow(client2) {
		t.Error("client 2 should be rate limited")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         10,
		CleanupInterval:   100 * time.Millisecond,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	rl.Allow("client-1")
	rl.Allow("client-2")
	rl.Allow("client-3")

	if got := rl.GetLimiterCount(); got != 3 {
		t.Errorf("expected 3 limiters, got %d", got)
	}

	time.Sleep(150 * time.Millisecond)
	rl.cleanup()

	if got := rl.GetLimiterCount(); got != 0 {
		t.Errorf("expected 0 limiters after cleanup, got %d", got)
	}
}

func TestRateLimiterPreservesActiveLimiters(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         10,
		CleanupInterval:   100 * time.Millisecond,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	rl.Allow("client-1")
	time.Sleep(60 * time.Millisecond)
	rl.Allow("client-1")
	time.Sleep(60 * time.Millisecond)
	rl.cleanup()

	if got := rl.GetLimiterCount(); got != 1 {
		t.Errorf("expected 1 limiter after cleanup, got %d", got)
	}
}

func TestRateLimiterBurstRecovery(t *testing.T) {
	config := RateLimiterConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         5,
		CleanupInterval:   1 * time.Minute,
	}

	rl := NewRateLimiter(config)
	defer rl.Stop()

	clientID := "test-client"

	for i := 0; i < 5; i++ {
		if !rl.Allow(clientID) {
			t.Errorf("request %d should be allowed (burst)", i+1)
		}
	}

	if rl.Allow(clientID) {
		t.Error("should be rate limited after burst")
	}

	time.Sleep(220 * time.Millisecond)

	successCount := 0
	for i := 0; i < 3; i++ {
		if rl.Allow(clientID) {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("expected 2 successful requests after partial recovery, got %d", successCount)
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig)

	rl.Allow("client-1")
	rl.Allow("client-2")

	rl.Stop()

	if got := rl.GetLimiterCount(); got != 2 {
		t.Errorf("expected 2 limiters, got %d", got)
	}
}

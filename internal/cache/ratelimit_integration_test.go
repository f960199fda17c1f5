package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/imgvault/imgvault/internal/testutil"
)

// setupCache connects to the test Redis. Skips unless TEST_REDIS_URL is set.
func setupCache(t *testing.T) *Cache {
	t.Helper()
	redisURL := testutil.RequireEnv(t, "TEST_REDIS_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cache, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache
}

func TestCheckIPRateLimit(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	// Fresh key per run so repeated test runs do not interfere.
	ip := "test-" + uuid.New().String()

	// Burst of 3 allows three immediate requests.
	for i := 0; i < 3; i++ {
		result, err := cache.CheckIPRateLimit(ctx, ip, 1, 3)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	// The fourth is rejected with a retry hint.
	result, err := cache.CheckIPRateLimit(ctx, ip, 1, 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatal("request over burst should be rejected")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("expected a positive retry-after, got %s", result.RetryAfter)
	}
}

func TestCheckIPRateLimit_IsolatedPerIP(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	first := "test-" + uuid.New().String()
	second := "test-" + uuid.New().String()

	if _, err := cache.CheckIPRateLimit(ctx, first, 1, 1); err != nil {
		t.Fatalf("check: %v", err)
	}
	result, err := cache.CheckIPRateLimit(ctx, first, 1, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Allowed {
		t.Fatal("first IP should be exhausted")
	}

	result, err = cache.CheckIPRateLimit(ctx, second, 1, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Allowed {
		t.Fatal("second IP must have its own bucket")
	}
}

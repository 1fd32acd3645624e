package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "tenant-001", "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, "tenant-001", "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected value1, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		val, err := c.Get(ctx, "tenant-001", "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for miss, got %s", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "tenant-001", "key1", []byte("value1"), time.Minute)
		if err := c.Delete(ctx, "tenant-001", "key1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := c.Get(ctx, "tenant-001", "key1")
		if val != nil {
			t.Errorf("expected nil after delete, got %s", val)
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "tenant-001", "short", []byte("v"), 10*time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		val, err := c.Get(ctx, "tenant-001", "short")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected expired entry to be gone, got %s", val)
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		c := NewLRUCache(3)
		defer c.Close()

		c.Set(ctx, "tenant-001", "k1", []byte("v1"), time.Minute)
		c.Set(ctx, "tenant-001", "k2", []byte("v2"), time.Minute)
		c.Set(ctx, "tenant-001", "k3", []byte("v3"), time.Minute)

		// Touch k1 so k2 becomes the oldest.
		c.Get(ctx, "tenant-001", "k1")
		c.Set(ctx, "tenant-001", "k4", []byte("v4"), time.Minute)

		if val, _ := c.Get(ctx, "tenant-001", "k2"); val != nil {
			t.Error("expected k2 to be evicted")
		}
		if val, _ := c.Get(ctx, "tenant-001", "k1"); val == nil {
			t.Error("expected recently used k1 to survive")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "tenant-a", "shared-key", []byte("a-value"), time.Minute)
		c.Set(ctx, "tenant-b", "shared-key", []byte("b-value"), time.Minute)

		val, _ := c.Get(ctx, "tenant-a", "shared-key")
		if string(val) != "a-value" {
			t.Errorf("expected a-value, got %s", val)
		}
		val, _ = c.Get(ctx, "tenant-b", "shared-key")
		if string(val) != "b-value" {
			t.Errorf("expected b-value, got %s", val)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "", "k", []byte("v"), time.Minute); err == nil {
			t.Error("expected error for empty tenantID on Set")
		}
		if _, err := c.Get(ctx, "", "k"); err == nil {
			t.Error("expected error for empty tenantID on Get")
		}
		if _, err := c.IncrementCounter(ctx, "", "k", time.Minute); err == nil {
			t.Error("expected error for empty tenantID on IncrementCounter")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		c := NewLRUCache(5)
		defer c.Close()

		c.Set(ctx, "tenant-001", "k1", []byte("v1"), time.Minute)
		c.Set(ctx, "tenant-001", "k2", []byte("v2"), time.Minute)

		size, capacity := c.Stats()
		if size != 2 || capacity != 5 {
			t.Errorf("expected 2/5, got %d/%d", size, capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		c := NewLRUCache(10)
		c.Set(ctx, "tenant-001", "k", []byte("v"), time.Minute)
		if err := c.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		size, _ := c.Stats()
		if size != 0 {
			t.Errorf("expected empty cache after close, got %d entries", size)
		}
	})
}

func TestIncrementCounter(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	t.Run("Increments", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := c.IncrementCounter(ctx, "tenant-001", "batches", time.Minute)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		}
	})

	t.Run("WindowReset", func(t *testing.T) {
		if _, err := c.IncrementCounter(ctx, "tenant-001", "fast", 10*time.Millisecond); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)

		got, err := c.IncrementCounter(ctx, "tenant-001", "fast", 10*time.Millisecond)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if got != 1 {
			t.Errorf("expected counter to reset to 1, got %d", got)
		}
	})
}

func TestAccountProfile(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	profile := &domain.AccountProfile{
		AccountCode: "4010",
		Count:       42,
		MeanAmount:  1250.5,
		StdAmount:   310.2,
		MaxAmount:   9800,
		LastSeen:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := c.SetAccountProfile(ctx, "tenant-001", "4010", profile, time.Minute); err != nil {
		t.Fatalf("SetAccountProfile failed: %v", err)
	}

	got, err := c.GetAccountProfile(ctx, "tenant-001", "4010")
	if err != nil {
		t.Fatalf("GetAccountProfile failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected profile, got nil")
	}
	if got.Count != 42 || got.MeanAmount != 1250.5 || got.MaxAmount != 9800 {
		t.Errorf("profile did not round-trip: %+v", got)
	}

	t.Run("Miss", func(t *testing.T) {
		got, err := c.GetAccountProfile(ctx, "tenant-001", "9999")
		if err != nil {
			t.Fatalf("GetAccountProfile failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for unknown account, got %+v", got)
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()
		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected *LRUCache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}

package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(c.Close)

	return c.(*RistrettoCache)
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("k", "v", time.Minute) {
		t.Fatal("expected set to succeed")
	}
	c.Wait()

	got, found := c.Get("k")
	if !found {
		t.Fatal("expected key to be present")
	}
	if got.(string) != "v" {
		t.Errorf("expected v, got %v", got)
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", 1, time.Minute)
	c.Wait()
	c.Delete("k")

	if _, found := c.Get("k"); found {
		t.Error("expected key to be deleted")
	}
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", 1, 20*time.Millisecond)
	c.Wait()
	time.Sleep(50 * time.Millisecond)

	if _, found := c.Get("k"); found {
		t.Error("expected key to expire")
	}
}

package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := NewLRU[string](4, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache reported a hit")
	}

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}

	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("overwrite not applied, got %q", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after overwrite, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")
	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 survived eviction")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s was evicted, want kept", k)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRU[string](4, 10*time.Millisecond)
	c.Set("a", "1")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry still served")
	}
}

func TestDelete(t *testing.T) {
	c := NewLRU[string](4, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry still served")
	}
	c.Delete("a") // deleting twice is a no-op
}

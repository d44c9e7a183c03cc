package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUGetSetDelete(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get on empty cache should miss")
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("Get(a) after overwrite = %d; want 2", v)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d; want 1", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get after Delete should miss")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	c.Get("k0")
	c.Set("k3", 3)

	if _, ok := c.Get("k1"); ok {
		t.Fatal("k1 should have been evicted")
	}
	for _, key := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(key); !ok {
			t.Fatalf("%s should still be cached", key)
		}
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](10, -time.Second)
	c.Set("a", 1)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should miss")
	}

	c.Set("b", 2)
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Fatalf("CleanExpired() = %d; want 1", cleaned)
	}
	if c.Size() != 0 {
		t.Fatalf("Size() = %d; want 0", c.Size())
	}
}

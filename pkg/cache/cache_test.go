package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 0)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("got=%d ok=%v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("missing key should not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired item should not be returned")
	}
}

func TestDefaultTTL(t *testing.T) {
	c := NewInMemoryCache[string, int](10 * time.Millisecond)
	c.Set("a", 1, 0) // ttl=0 使用默认

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("item should expire with default ttl")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted key still present")
	}
	if c.Size() != 1 {
		t.Fatalf("size got=%d want=1", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("size after clear got=%d", c.Size())
	}
}

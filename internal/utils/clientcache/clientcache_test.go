package clientcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrCreateCachesResult(t *testing.T) {
	cache := NewCache[*int]()
	var calls int32

	factory := func() (*int, error) {
		atomic.AddInt32(&calls, 1)
		v := 7
		return &v, nil
	}

	first, err := cache.GetOrCreate("a", factory)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := cache.GetOrCreate("a", factory)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if first != second {
		t.Error("cache returned different instances for the same key")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}
}

func TestGetOrCreateSingleflight(t *testing.T) {
	cache := NewCache[string]()
	var calls int32

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := cache.GetOrCreate("shared", func() (string, error) {
				atomic.AddInt32(&calls, 1)
				return "client", nil
			})
			if err != nil || v != "client" {
				t.Errorf("GetOrCreate = %q, %v", v, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}
}

func TestGetOrCreateDoesNotCacheErrors(t *testing.T) {
	cache := NewCache[string]()
	boom := errors.New("boom")

	if _, err := cache.GetOrCreate("k", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	v, err := cache.GetOrCreate("k", func() (string, error) { return "recovered", nil })
	if err != nil || v != "recovered" {
		t.Errorf("GetOrCreate after failure = %q, %v", v, err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	cache := NewCache[int]()
	mustCreate := func(key string, val int) {
		if _, err := cache.GetOrCreate(key, func() (int, error) { return val, nil }); err != nil {
			t.Fatalf("GetOrCreate(%q) failed: %v", key, err)
		}
	}

	mustCreate("a", 1)
	mustCreate("b", 2)

	cache.Delete("a")
	var rebuilt bool
	mustCreateCheck, err := cache.GetOrCreate("a", func() (int, error) { rebuilt = true; return 3, nil })
	if err != nil || mustCreateCheck != 3 || !rebuilt {
		t.Error("Delete did not evict the entry")
	}

	cache.Clear()
	rebuilt = false
	if _, err := cache.GetOrCreate("b", func() (int, error) { rebuilt = true; return 4, nil }); err != nil || !rebuilt {
		t.Error("Clear did not evict all entries")
	}
}

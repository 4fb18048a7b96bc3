package common

import (
	"regexp"
	"sync"
	"testing"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNewIDFormat(t *testing.T) {
	ids := NewRandomIDs()
	for i := 0; i < 100; i++ {
		id := ids.NewID()
		if !hex64.MatchString(id) {
			t.Fatalf("malformed id %q", id)
		}
	}
}

func TestNewIDConcurrentUnique(t *testing.T) {
	ids := NewRandomIDs()
	const n = 8
	const per = 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, n*per)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				id := ids.NewID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != n*per {
		t.Fatalf("expected %d unique ids, got %d", n*per, len(seen))
	}
}

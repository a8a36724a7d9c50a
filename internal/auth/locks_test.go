package auth

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("Serializes Same Key", func(t *testing.T) {
		k := newKeyedMutex()
		unlock := k.Lock("a")

		acquired := make(chan struct{})
		go func() {
			release := k.Lock("a")
			close(acquired)
			release()
		}()

		select {
		case <-acquired:
			t.Fatal("second lock on the same key should block")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second lock was never acquired")
		}
	})

	t.Run("Independent Keys", func(t *testing.T) {
		k := newKeyedMutex()
		unlockA := k.Lock("a")
		defer unlockA()

		done := make(chan struct{})
		go func() {
			k.Lock("b")()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on another key should not block")
		}
	})

	t.Run("Drops Unused Entries", func(t *testing.T) {
		k := newKeyedMutex()
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				k.Lock("shared")()
			}()
		}
		wg.Wait()

		if n := k.size(); n != 0 {
			t.Errorf("expected no entries left, got %d", n)
		}
	})
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/tunepipe/internal/models"
	"github.com/desertthunder/tunepipe/internal/shared"
	"github.com/redis/go-redis/v9"
)

// exercise runs the behaviour every backend shares.
func exercise(t *testing.T, s models.Store) {
	t.Helper()
	ctx := context.Background()

	session := models.NewSession(shared.GenerateID())
	session.SetSpotify(models.PendingVerifier{Verifier: "v", State: "s", NextURL: "/after"})

	if _, err := s.Get(ctx, session.ID()); !errors.Is(err, shared.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound before save, got %v", err)
	}

	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if session.ExpiresAt().IsZero() {
		t.Error("save should set an expiry")
	}

	got, err := s.Get(ctx, session.ID())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if pending, ok := got.Spotify().(models.PendingVerifier); !ok || pending.NextURL != "/after" {
		t.Errorf("unexpected state %#v", got.Spotify())
	}

	if err := s.Delete(ctx, session.ID()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(ctx, session.ID()); !errors.Is(err, shared.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("Lifecycle", func(t *testing.T) {
		exercise(t, NewMemoryStore(time.Hour))
	})

	t.Run("Get Returns Copy", func(t *testing.T) {
		ctx := context.Background()
		s := NewMemoryStore(time.Hour)
		session := models.NewSession("copy")
		if err := s.Save(ctx, session); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		got, _ := s.Get(ctx, "copy")
		got.SetSpotify(models.Authenticated{Token: models.TokenRecord{AccessToken: "x"}})

		again, _ := s.Get(ctx, "copy")
		if _, ok := again.Token(); ok {
			t.Error("mutating a fetched session should not change the store")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		ctx := context.Background()
		s := NewMemoryStore(7 * 24 * time.Hour)
		if err := s.Save(ctx, models.NewSession("old")); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := s.Save(ctx, models.NewSession("older")); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		s.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

		n, _ := s.Purge(ctx)
		if n != 2 {
			t.Errorf("expected 2 purged sessions, got %d", n)
		}
		if _, err := s.Get(ctx, "old"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected expired session to be gone, got %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("expected empty store, got %d", s.Len())
		}
	})

	t.Run("Save Rolls Expiry", func(t *testing.T) {
		ctx := context.Background()
		s := NewMemoryStore(time.Hour)
		session := models.NewSession("rolling")
		if err := s.Save(ctx, session); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		first := session.ExpiresAt()

		s.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
		if err := s.Save(ctx, session); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if !session.ExpiresAt().After(first) {
			t.Error("saving again should push the expiry out")
		}
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	t.Run("Lifecycle", func(t *testing.T) {
		exercise(t, NewRedisStore(client, "", time.Hour))
	})

	t.Run("TTL", func(t *testing.T) {
		ctx := context.Background()
		s := NewRedisStore(client, "test:", 7*24*time.Hour)
		session := models.NewSession("ttl")
		if err := s.Save(ctx, session); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		if ttl := mr.TTL("test:ttl"); ttl != 7*24*time.Hour {
			t.Errorf("expected 7 day ttl, got %v", ttl)
		}

		mr.FastForward(7*24*time.Hour + time.Second)
		if _, err := s.Get(ctx, "ttl"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected session to expire, got %v", err)
		}
	})

	t.Run("FromOptions", func(t *testing.T) {
		s, err := NewRedisStoreFromOptions(context.Background(), RedisOptions{URL: "redis://" + mr.Addr()}, time.Hour)
		if err != nil {
			t.Fatalf("expected connection, got %v", err)
		}
		defer s.Close()
		exercise(t, s)
	})

	t.Run("Bad URL", func(t *testing.T) {
		if _, err := NewRedisStoreFromOptions(context.Background(), RedisOptions{URL: "::nope"}, time.Hour); err == nil {
			t.Error("expected error for invalid url")
		}
	})
}

func TestFactory(t *testing.T) {
	t.Run("ParseStoreType", func(t *testing.T) {
		tc := map[string]StoreType{
			"memory": StoreTypeMemory,
			"SQLite": StoreTypeSQLite,
			"redis":  StoreTypeRedis,
			"other":  StoreTypeMemory,
		}
		for in, want := range tc {
			if got := ParseStoreType(in); got != want {
				t.Errorf("ParseStoreType(%q) = %s, want %s", in, got, want)
			}
		}
	})

	t.Run("SQLite Backend", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Session.Store = "sqlite"
		config.Database.Path = ":memory:"

		s, err := New(context.Background(), config)
		if err != nil {
			t.Fatalf("failed to create sqlite store: %v", err)
		}
		defer s.Close()

		if _, ok := s.(Purger); !ok {
			t.Error("sqlite store should support purging")
		}
		exercise(t, s)
	})

	t.Run("Memory Backend", func(t *testing.T) {
		s, err := New(context.Background(), shared.DefaultConfig())
		if err != nil {
			t.Fatalf("failed to create memory store: %v", err)
		}
		if _, ok := s.(*MemoryStore); !ok {
			t.Errorf("expected memory store, got %T", s)
		}
	})
}

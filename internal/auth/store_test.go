package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("load before save", func(t *testing.T) {
		if _, err := store.Load(ctx); err != ErrNoCredentials {
			t.Errorf("Load() error = %v, want ErrNoCredentials", err)
		}
	})

	t.Run("save and load round trip", func(t *testing.T) {
		creds := &Credentials{
			AccessToken:  "access-abc",
			RefreshToken: "refresh-xyz",
			ExpiresAt:    time.Now().Add(15 * time.Minute),
		}

		if err := store.Save(ctx, creds); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}

		loaded, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if loaded.AccessToken != creds.AccessToken || loaded.RefreshToken != creds.RefreshToken {
			t.Errorf("Load() = %+v, want %+v", loaded, creds)
		}
	})

	t.Run("loaded credentials are a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		loaded.AccessToken = "mutated"

		again, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if again.AccessToken == "mutated" {
			t.Error("mutating a loaded credential changed the stored copy")
		}
	})

	t.Run("clear", func(t *testing.T) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear() failed: %v", err)
		}
		if _, err := store.Load(ctx); err != ErrNoCredentials {
			t.Errorf("Load() after Clear error = %v, want ErrNoCredentials", err)
		}
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	t.Run("load before save", func(t *testing.T) {
		if _, err := store.Load(ctx); err != ErrNoCredentials {
			t.Errorf("Load() error = %v, want ErrNoCredentials", err)
		}
	})

	t.Run("save survives a new store instance", func(t *testing.T) {
		creds := &Credentials{AccessToken: "durable", RefreshToken: "refresh"}
		if err := store.Save(ctx, creds); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}

		reopened := NewFileStore(dir)
		loaded, err := reopened.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if loaded.AccessToken != "durable" {
			t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, "durable")
		}
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear() failed: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Errorf("second Clear() failed: %v", err)
		}
	})
}

func TestCredentialsValid(t *testing.T) {
	tests := []struct {
		name  string
		creds *Credentials
		want  bool
	}{
		{"nil credentials", nil, false},
		{"empty access token", &Credentials{}, false},
		{"no expiry", &Credentials{AccessToken: "a"}, true},
		{"future expiry", &Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}, true},
		{"past expiry", &Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

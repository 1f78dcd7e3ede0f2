//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/batonhq/baton"
	pgstate "github.com/batonhq/baton/state/postgres"
)

// setupTestBackend creates a Postgres container and returns a migrated Backend.
func setupTestBackend(t *testing.T) *pgstate.Backend {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("baton_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	backend, err := pgstate.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})

	if migErr := backend.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	return backend
}

// ──────────────────────────────────────────────────

func TestSetGetDelete(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "workflow:run_1", []byte(`{"status":"running"}`), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := b.Get(ctx, "workflow:run_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"status":"running"}` {
		t.Errorf("got %q, want %q", got, `{"status":"running"}`)
	}

	if err := b.Delete(ctx, "workflow:run_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Get(ctx, "workflow:run_1"); !errors.Is(err, baton.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestUpsertReplacesValueAndTTL(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("v1"), 1*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("re-set: %v", err)
	}

	time.Sleep(1200 * time.Millisecond)

	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after re-set: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("got %q, want %q", got, "v2")
	}
}

func TestExpiredKeyIsMissing(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "cache:action:x:h", []byte("v"), 500*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(800 * time.Millisecond)

	if _, err := b.Get(ctx, "cache:action:x:h"); !errors.Is(err, baton.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for expired key, got %v", err)
	}
}

func TestKeysPrefixAndUnderscoreEscaping(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	for _, k := range []string{
		"workflow:run_01a", "workflow:run_01b", "workflow:runX01c", "resource:file:f1",
	} {
		if err := b.Set(ctx, k, []byte("v"), 0); err != nil {
			t.Fatalf("set %q: %v", k, err)
		}
	}

	// "run_" must match the literal underscore, not any character.
	keys, err := b.Keys(ctx, "workflow:run_")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := []string{"workflow:run_01a", "workflow:run_01b"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys %v, want %v", len(keys), keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestPrune(t *testing.T) {
	b := setupTestBackend(t)
	ctx := context.Background()

	if err := b.Set(ctx, "audit:old", []byte("v"), 200*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Set(ctx, "audit:live", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(400 * time.Millisecond)

	n, err := b.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}

	keys, err := b.Keys(ctx, "audit:")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "audit:live" {
		t.Errorf("got %v, want [audit:live]", keys)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	b := setupTestBackend(t)
	if err := b.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

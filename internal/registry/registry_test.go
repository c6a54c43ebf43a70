package registry

import (
	"context"
	"testing"
)

// openTestRegistry opens an in-memory SQLiteRegistry for use in tests.
func openTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	r, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory registry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func Test_Registry_RegisterAndContains(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.Register(ctx, "report.pdf", "abc123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := r.Contains(ctx, "report.pdf")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if !ok {
		t.Error("want report.pdf registered")
	}

	ok, err = r.Contains(ctx, "missing.pdf")
	if err != nil {
		t.Fatalf("contains missing: %v", err)
	}
	if ok {
		t.Error("want missing.pdf not registered")
	}
}

func Test_Registry_ReRegisterUpdatesHash(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.Register(ctx, "notes.txt", "hash-v1"); err != nil {
		t.Fatalf("register v1: %v", err)
	}
	if err := r.Register(ctx, "notes.txt", "hash-v2"); err != nil {
		t.Fatalf("register v2: %v", err)
	}

	h, err := r.Hash(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h != "hash-v2" {
		t.Errorf("want hash-v2, got %q", h)
	}

	entries, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("re-register must not duplicate: want 1 entry, got %d", len(entries))
	}
}

func Test_Registry_HashMissingFile(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)

	h, err := r.Hash(context.Background(), "nope")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h != "" {
		t.Errorf("want empty hash for unregistered file, got %q", h)
	}
}

func Test_Registry_ListOrderedByName(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"zebra.md", "alpha.md", "mango.md"} {
		if err := r.Register(ctx, name, "h"); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	entries, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"alpha.md", "mango.md", "zebra.md"}
	if len(entries) != len(want) {
		t.Fatalf("want %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Name != w {
			t.Errorf("entry[%d]: want %q, got %q", i, w, entries[i].Name)
		}
	}
}

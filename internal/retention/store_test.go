package retention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/vigil-labs/vigil-core/internal/config"
)

func openTestStores(t *testing.T, capacity int) map[string]Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sq, err := Open(context.Background(), config.RetentionConfig{
		Mode:     "sqlite",
		Path:     filepath.Join(t.TempDir(), "vigil.db"),
		Capacity: capacity,
	}, log)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(capacity),
		"sqlite": sq,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreCapAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, store := range openTestStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				err := store.Record(ctx, Entry{
					ClipID:    fmt.Sprintf("clip-%d", i),
					SessionID: "s1",
					Tier:      "none",
				})
				if err != nil {
					t.Fatalf("record %d: %v", i, err)
				}

				entries, err := store.List(ctx)
				if err != nil {
					t.Fatalf("list after %d: %v", i, err)
				}
				if len(entries) > 2 {
					t.Fatalf("cap exceeded after insert %d: %d entries", i, len(entries))
				}
			}

			entries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("final list: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].ClipID != "clip-4" || entries[1].ClipID != "clip-3" {
				t.Fatalf("expected most recent first, got %s, %s", entries[0].ClipID, entries[1].ClipID)
			}
		})
	}
}

func TestStoreRoundTripsFields(t *testing.T) {
	ctx := context.Background()
	for name, store := range openTestStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			in := Entry{
				ClipID:     "clip-1",
				SessionID:  "kitchen",
				Tier:       "serious",
				AlertFired: true,
				Incomplete: true,
				Transcript: "i **** this",
			}
			if err := store.Record(ctx, in); err != nil {
				t.Fatalf("record: %v", err)
			}
			entries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			got := entries[0]
			if got.ClipID != in.ClipID || got.SessionID != in.SessionID ||
				got.Tier != in.Tier || !got.AlertFired || !got.Incomplete ||
				got.Transcript != in.Transcript {
				t.Fatalf("entry mismatch: %+v", got)
			}
			if got.CreatedAt.IsZero() {
				t.Fatal("expected CreatedAt to be stamped")
			}
		})
	}
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	for name, store := range openTestStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if err := store.Record(ctx, Entry{ClipID: fmt.Sprintf("c%d", i), SessionID: "s1", Tier: "none"}); err != nil {
					t.Fatalf("record: %v", err)
				}
			}
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			entries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("expected empty store after clear, got %d entries", len(entries))
			}
		})
	}
}

func TestStoreConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	for name, store := range openTestStores(t, 2) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						_ = store.Record(ctx, Entry{
							ClipID:    fmt.Sprintf("g%d-c%d", g, i),
							SessionID: "s1",
							Tier:      "none",
						})
					}
				}(g)
			}
			wg.Wait()

			entries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected exactly cap entries after concurrent writes, got %d", len(entries))
			}
		})
	}
}

func TestOpenDefaultsToMemory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(context.Background(), config.RetentionConfig{Mode: "memory", Capacity: 2}, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*memoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

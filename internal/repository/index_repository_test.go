package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/store"
)

func TestIndexRepository_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewIndexRepository(store.NewMemoryStore())

	// Missing index document reads as empty.
	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(entries))
	}

	if err := repo.Upsert(ctx, model.DonationIndexEntry{Reference: "r1", Status: model.StatusAuthorized}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, model.DonationIndexEntry{Reference: "r1", Status: model.StatusCaptured}); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	entries, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != model.StatusCaptured {
		t.Errorf("entry not updated, status = %s", entries[0].Status)
	}
}

// Two concurrent webhook deliveries for different references must not lose
// each other's index entries: the conditional write forces the loser of
// the race to reload and merge.
func TestIndexRepository_ConcurrentUpsertsLoseNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewIndexRepository(store.NewMemoryStore())

	// Each conflict corresponds to another writer's successful commit, so
	// writers-1 retries are always enough; keep writers within indexRetries.
	const writers = 5
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := model.DonationIndexEntry{
				Reference: fmt.Sprintf("ref-%02d", i),
				Status:    model.StatusCaptured,
			}
			if err := repo.Upsert(ctx, e); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent upsert: %v", err)
	}

	entries, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != writers {
		t.Errorf("lost updates: expected %d entries, got %d", writers, len(entries))
	}
}

package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemStoreLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemStore([]Record{
		{
			CustomerID: "cust-1",
			Conversations: []Conversation{
				{ID: "a", Text: "first call"},
				{ID: "b", Text: "second call"},
			},
		},
		{CustomerID: "cust-empty"},
	})

	t.Run("known customer", func(t *testing.T) {
		t.Parallel()
		rec, err := store.Load(ctx, "cust-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.CustomerID != "cust-1" {
			t.Errorf("CustomerID = %q", rec.CustomerID)
		}
		if len(rec.Conversations) != 2 {
			t.Errorf("conversations = %d, want 2", len(rec.Conversations))
		}
	})

	t.Run("unknown customer", func(t *testing.T) {
		t.Parallel()
		_, err := store.Load(ctx, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("customer with empty history", func(t *testing.T) {
		t.Parallel()
		_, err := store.Load(ctx, "cust-empty")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("want ErrNotFound for empty history, got %v", err)
		}
	})

	t.Run("load is idempotent", func(t *testing.T) {
		t.Parallel()
		first, err := store.Load(ctx, "cust-1")
		if err != nil {
			t.Fatal(err)
		}
		second, err := store.Load(ctx, "cust-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(first.Conversations) != len(second.Conversations) {
			t.Error("repeated loads returned different records")
		}
	})
}

func TestRecordRecent(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{
		CustomerID: "c",
		Conversations: []Conversation{
			{ID: "1", Date: base},
			{ID: "2", Date: base.AddDate(0, 1, 0)},
			{ID: "3", Date: base.AddDate(0, 2, 0)},
		},
	}

	got := rec.Recent(2)
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("Recent(2) = %v", got)
	}
	if got := rec.Recent(10); len(got) != 3 {
		t.Errorf("Recent(10) = %d entries, want all 3", len(got))
	}
	if got := rec.Recent(0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestDemoStoreHasHistory(t *testing.T) {
	t.Parallel()
	rec, err := NewDemoStore().Load(context.Background(), DemoCustomerID)
	if err != nil {
		t.Fatalf("demo store has no history for %s: %v", DemoCustomerID, err)
	}
	if rec.Empty() {
		t.Fatal("demo record is empty")
	}
}

package memory

import (
	"context"
	"testing"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

func TestMemoryStore_MissingIsNil(t *testing.T) {
	s := New()
	st, err := s.Get(context.Background(), "nope")
	if err != nil || st != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", st, err)
	}
}

func TestMemoryStore_PutGetDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := domain.SourceState{LastPostID: "B", SeenPostIDs: []string{"B", "A"}}
	if err := s.Put(ctx, "feed", in); err != nil {
		t.Fatalf("Put: %v", err)
	}
	in.SeenPostIDs[0] = "mutated"

	got, err := s.Get(ctx, "feed")
	if err != nil || got == nil {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if got.SeenPostIDs[0] != "B" {
		t.Fatalf("store aliased the caller's slice: %v", got.SeenPostIDs)
	}
}

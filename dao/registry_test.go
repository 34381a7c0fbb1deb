package dao

import (
	"testing"

	"github.com/hearthlink/mediavault/model"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistryCreateGet(t *testing.T) {
	r := newTestRegistry(t)
	m := &model.Media{GMID: "abc", OriginalName: "a.jpg", MediaType: model.MediaTypePhoto}
	if err := r.Create(m); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := r.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IndexState != model.StatePending {
		t.Errorf("expected default state pending, got %s", got.IndexState)
	}
}

func TestRegistryTransitionCAS(t *testing.T) {
	r := newTestRegistry(t)
	m := &model.Media{GMID: "abc", OriginalName: "a.jpg", MediaType: model.MediaTypePhoto, IndexState: model.StatePending}
	if err := r.Create(m); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.Transition("abc", model.StatePending, model.StateThumbnailReady, "", false); err != nil {
		t.Fatalf("transition: %v", err)
	}

	// A stale CAS (still expecting "pending") must fail now.
	if err := r.Transition("abc", model.StatePending, model.StateEmbeddingInFlight, "", false); err != ErrCASMismatch {
		t.Fatalf("expected ErrCASMismatch, got %v", err)
	}

	got, err := r.Get("abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IndexState != model.StateThumbnailReady {
		t.Errorf("expected thumbnail_ready, got %s", got.IndexState)
	}
}

func TestRegistryListPagedAndFiltered(t *testing.T) {
	r := newTestRegistry(t)
	r.Create(&model.Media{GMID: "v1", MediaType: model.MediaTypeVideo, IndexState: model.StatePending})
	for i := 0; i < 3; i++ {
		r.Create(&model.Media{GMID: string(rune('a' + i)), MediaType: model.MediaTypePhoto, IndexState: model.StatePending})
	}

	items, total, err := r.List(ListFilter{MediaType: model.MediaTypePhoto}, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected page of 2, got %d", len(items))
	}

	items, total, err = r.List(ListFilter{}, 1, 500)
	if err != nil {
		t.Fatalf("list unfiltered: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}
	if len(items) != 4 {
		t.Fatalf("expected page_size clamp to still return all 4 rows, got %d", len(items))
	}
}

func TestRegistryListNonTerminal(t *testing.T) {
	r := newTestRegistry(t)
	r.Create(&model.Media{GMID: "p1", MediaType: model.MediaTypePhoto, IndexState: model.StatePending})
	r.Create(&model.Media{GMID: "p2", MediaType: model.MediaTypePhoto, IndexState: model.StateIndexed})
	r.Create(&model.Media{GMID: "p3", MediaType: model.MediaTypePhoto, IndexState: model.StateFailed})

	items, err := r.ListNonTerminal()
	if err != nil {
		t.Fatalf("list non-terminal: %v", err)
	}
	if len(items) != 1 || items[0].GMID != "p1" {
		t.Fatalf("expected only p1, got %+v", items)
	}
}

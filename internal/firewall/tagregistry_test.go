package firewall

import "testing"

func TestTagRegistryAcquireReusesIDForSameTag(t *testing.T) {
	r := NewTagRegistry()
	id1, err := r.Acquire("web")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	id2, err := r.Acquire("web")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("got ids %d and %d, want the same id for the same tag", id1, id2)
	}
	if r.Len() != 1 {
		t.Fatalf("got Len %d, want 1", r.Len())
	}
}

func TestTagRegistryDistinctTagsGetDistinctIDs(t *testing.T) {
	r := NewTagRegistry()
	id1, _ := r.Acquire("web")
	id2, _ := r.Acquire("db")
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d for both", id1)
	}
}

func TestTagRegistryReleaseRemovesAtZeroRefcount(t *testing.T) {
	r := NewTagRegistry()
	id, _ := r.Acquire("web")
	r.Acquire("web") // refcount 2

	r.Release(id)
	if _, ok := r.GetTag(id); !ok {
		t.Fatal("expected tag to still be live after one release at refcount 2")
	}
	r.Release(id)
	if _, ok := r.GetTag(id); ok {
		t.Fatal("expected tag to be gone after releasing to refcount 0")
	}
	if r.Len() != 0 {
		t.Fatalf("got Len %d, want 0", r.Len())
	}
}

func TestTagRegistryReleaseUnknownIDIsNoop(t *testing.T) {
	r := NewTagRegistry()
	r.Release(9999) // must not panic
}

func TestTagRegistryGetTagDisplayFallsBackToUntagged(t *testing.T) {
	r := NewTagRegistry()
	id, _ := r.Acquire("")
	disp, ok := r.GetTagDisplay(id)
	if !ok {
		t.Fatal("expected GetTagDisplay to succeed for a live id")
	}
	if disp != "untagged" {
		t.Fatalf("got %q, want untagged", disp)
	}
}

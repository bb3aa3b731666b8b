package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ricardomdn/broll/internal/types"
)

func twoSegments() []types.ScriptSegment {
	return []types.ScriptSegment{
		{ID: "s1", Text: "one", SearchTerm: "cat"},
		{ID: "s2", Text: "two", SearchTerm: "kitten"},
	}
}

func TestPatch_MutatesExactlyOneSegment(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Replace(twoSegments())

	_, version := m.Snapshot()
	err := m.Patch("s1", version, func(s *types.ScriptSegment) {
		s.SearchTerm = "orange cat"
		s.VideoURL = "orange.mp4"
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	segs, _ := m.Snapshot()
	if segs[0].SearchTerm != "orange cat" || segs[0].VideoURL != "orange.mp4" {
		t.Fatalf("segment s1 not patched: %+v", segs[0])
	}
	if segs[0].ID != "s1" || segs[0].Text != "one" {
		t.Fatalf("patch must not change id or text: %+v", segs[0])
	}
	if !reflect.DeepEqual(segs[1], twoSegments()[1]) {
		t.Fatalf("sibling segment changed: %+v", segs[1])
	}
}

func TestPatch_RejectsStaleVersion(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Replace(twoSegments())
	_, version := m.Snapshot()

	// A full regenerate lands while the edit is in flight.
	m.Replace(twoSegments())

	err := m.Patch("s1", version, func(s *types.ScriptSegment) { s.SearchTerm = "late" })
	if !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}

	segs, _ := m.Snapshot()
	if segs[0].SearchTerm != "cat" {
		t.Fatalf("stale patch must not apply, got %q", segs[0].SearchTerm)
	}
}

func TestPatch_UnknownID(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Replace(twoSegments())
	_, version := m.Snapshot()

	if err := m.Patch("nope", version, func(*types.ScriptSegment) {}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Replace(twoSegments())

	segs, _ := m.Snapshot()
	segs[0].SearchTerm = "mutated"

	fresh, _ := m.Snapshot()
	if fresh[0].SearchTerm != "cat" {
		t.Fatalf("snapshot mutation leaked into the manager")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.Replace(twoSegments())

	seg, _, err := m.Get("s2")
	if err != nil || seg.Text != "two" {
		t.Fatalf("get s2: %+v, %v", seg, err)
	}
	if _, _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ricardomdn/broll/internal/domain/selection"
	"github.com/ricardomdn/broll/internal/ports"
	"github.com/ricardomdn/broll/internal/types"
)

type searchCall struct {
	query string
	page  int
}

// fakeSearcher scripts responses per query and records every call.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	respond func(query string, page int) ([]types.Video, error)
}

func (f *fakeSearcher) Search(_ context.Context, _ string, query string, page int) ([]types.Video, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query: query, page: page})
	f.mu.Unlock()
	return f.respond(query, page)
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.query
	}
	return out
}

type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

func video(id int, link string) types.Video {
	return types.Video{
		ID:       id,
		Duration: 10,
		User:     types.VideoUser{Name: "Ana", URL: "https://example.com/ana"},
		Files:    []types.VideoFile{{Quality: "hd", Width: 1920, Link: link}},
	}
}

func testConfig() Config {
	return Config{
		FallbackTerms:   []string{"cat", "kitten"},
		FallbackMaxPage: 5,
		SafetyTerm:      "cat",
		TermTopN:        5,
		FallbackTopN:    3,
	}
}

func newTestResolver(search ports.VideoSearcher, cfg Config) *Resolver {
	r := New(search, selection.NewPicker(zeroRand{}), zeroRand{}, cfg, nil)
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func TestResolveAll_PreservesOrderAndRecordsWinningTerm(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, _ int) ([]types.Video, error) {
		switch query {
		case "sleeping cat":
			return []types.Video{video(1, "sleep.mp4")}, nil
		case "cat hunting":
			return []types.Video{video(2, "hunt.mp4")}, nil
		default:
			return nil, nil
		}
	}}

	raws := []types.RawSegment{
		{Text: "Cats sleep a lot.", SearchTerms: []string{"sleeping cat", "cozy bed", "cat"}},
		{Text: "They are great hunters.", SearchTerms: []string{"bird watching", "cat hunting", "cat"}},
	}

	segs, err := newTestResolver(search, testConfig()).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != raws[0].Text || segs[1].Text != raws[1].Text {
		t.Fatalf("segment order not preserved: %q, %q", segs[0].Text, segs[1].Text)
	}
	if segs[0].SearchTerm != "sleeping cat" || segs[0].VideoURL != "sleep.mp4" {
		t.Fatalf("segment 0 resolved with %q / %q", segs[0].SearchTerm, segs[0].VideoURL)
	}
	// Second segment's first term found nothing, so the second term won.
	if segs[1].SearchTerm != "cat hunting" || segs[1].VideoURL != "hunt.mp4" {
		t.Fatalf("segment 1 resolved with %q / %q", segs[1].SearchTerm, segs[1].VideoURL)
	}
	if segs[0].ID == segs[1].ID || segs[0].ID == "" {
		t.Fatalf("segment ids must be unique and non-empty")
	}
}

func TestResolveOne_FallbackMonotonicity(t *testing.T) {
	t.Parallel()

	// Everything empty: tier 1 (all 3 terms), tier 2, tier 3 must each be
	// attempted, in that order, before giving up.
	search := &fakeSearcher{respond: func(string, int) ([]types.Video, error) { return nil, nil }}
	raws := []types.RawSegment{{Text: "x", SearchTerms: []string{"a", "b", "c"}}}

	segs, err := newTestResolver(search, testConfig()).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c", "cat", "cat"} // tier2 drew "cat" (rng=0), tier3 is "cat"
	if got := search.queries(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("search sequence = %v, want %v", got, want)
	}

	seg := segs[0]
	if seg.Resolved() {
		t.Fatalf("expected unresolved segment")
	}
	if seg.VideoURL != "" || seg.VideoDuration != 0 || seg.VideoUser != "" || seg.VideoUserURL != "" {
		t.Fatalf("unresolved segment must carry no asset metadata: %+v", seg)
	}
}

func TestResolveOne_SafetyTierResolves(t *testing.T) {
	t.Parallel()

	// AI terms and the randomized fallback return nothing; only the final
	// deterministic page-1 safety search has a result.
	calls := 0
	var mu sync.Mutex
	search := &fakeSearcher{}
	search.respond = func(query string, page int) ([]types.Video, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 5 && query == "cat" && page == 1 {
			return []types.Video{video(9, "safety.mp4")}, nil
		}
		return nil, nil
	}

	raws := []types.RawSegment{{Text: "Cats sleep a lot.", SearchTerms: []string{"a", "b", "c"}}}
	segs, err := newTestResolver(search, testConfig()).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs[0].SearchTerm != "cat" {
		t.Fatalf("expected the safety term, got %q", segs[0].SearchTerm)
	}
	if segs[0].VideoURL != "safety.mp4" {
		t.Fatalf("expected the safety asset, got %q", segs[0].VideoURL)
	}
}

func TestResolveOne_FallbackTierTagsTerm(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, page int) ([]types.Video, error) {
		if query == "cat" && page == 1 {
			// rng=0 draws fallback term "cat" and page 1.
			return []types.Video{video(3, "fb.mp4")}, nil
		}
		return nil, nil
	}}

	raws := []types.RawSegment{{Text: "x", SearchTerms: []string{"nothing here"}}}
	segs, err := newTestResolver(search, testConfig()).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(segs[0].SearchTerm, "(fallback)") {
		t.Fatalf("fallback term must be tagged, got %q", segs[0].SearchTerm)
	}
	if segs[0].VideoURL != "fb.mp4" {
		t.Fatalf("expected fallback asset, got %q", segs[0].VideoURL)
	}
}

func TestResolveOne_NoFallbackTermsSkipsStraightToSafety(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, page int) ([]types.Video, error) {
		if query == "harbor" && page == 1 {
			return []types.Video{video(7, "harbor.mp4")}, nil
		}
		return nil, nil
	}}

	// No fallback pool and no page bound configured at all.
	cfg := Config{SafetyTerm: "harbor", TermTopN: 5, FallbackTopN: 3}
	raws := []types.RawSegment{{Text: "x", SearchTerms: []string{"a"}}}

	segs, err := newTestResolver(search, cfg).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "harbor"}
	if got := search.queries(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("search sequence = %v, want %v", got, want)
	}
	if segs[0].SearchTerm != "harbor" || segs[0].VideoURL != "harbor.mp4" {
		t.Fatalf("expected the safety asset, got %q / %q", segs[0].SearchTerm, segs[0].VideoURL)
	}
}

func TestResolveOne_ZeroMaxPageDefaultsToPageOne(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, page int) ([]types.Video, error) {
		if query == "cat" && page == 1 {
			return []types.Video{video(3, "fb.mp4")}, nil
		}
		return nil, nil
	}}

	cfg := Config{FallbackTerms: []string{"cat"}, SafetyTerm: "cat", FallbackTopN: 3}
	raws := []types.RawSegment{{Text: "x", SearchTerms: []string{"nothing here"}}}

	segs, err := newTestResolver(search, cfg).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if segs[0].SearchTerm != "cat"+fallbackSuffix || segs[0].VideoURL != "fb.mp4" {
		t.Fatalf("expected a page-1 fallback hit, got %q / %q", segs[0].SearchTerm, segs[0].VideoURL)
	}
	if search.calls[1].page != 1 {
		t.Fatalf("fallback searched page %d, want 1", search.calls[1].page)
	}
}

func TestResolveAll_InvalidKeyAbortsBatch(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, _ int) ([]types.Video, error) {
		if query == "boom" {
			return nil, fmt.Errorf("pexels: %w", ports.ErrInvalidAPIKey)
		}
		return []types.Video{video(1, "ok.mp4")}, nil
	}}

	raws := []types.RawSegment{
		{Text: "fine", SearchTerms: []string{"good"}},
		{Text: "broken", SearchTerms: []string{"boom"}},
		{Text: "also fine", SearchTerms: []string{"good"}},
	}

	segs, err := newTestResolver(search, testConfig()).ResolveAll(context.Background(), "key", raws)
	if !errors.Is(err, ports.ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
	if segs != nil {
		t.Fatalf("no segments may be reported on credential failure, got %d", len(segs))
	}
}

func TestResolveAll_SingleUnresolvedSegmentDoesNotFailBatch(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, _ int) ([]types.Video, error) {
		if query == "good" {
			return []types.Video{video(1, "ok.mp4")}, nil
		}
		return nil, nil
	}}

	cfg := testConfig()
	cfg.FallbackTerms = []string{"dry"}
	cfg.SafetyTerm = "dry"
	raws := []types.RawSegment{
		{Text: "a", SearchTerms: []string{"good"}},
		{Text: "b", SearchTerms: []string{"dry"}},
	}

	segs, err := newTestResolver(search, cfg).ResolveAll(context.Background(), "key", raws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !segs[0].Resolved() {
		t.Fatalf("segment 0 should be resolved")
	}
	if segs[1].Resolved() {
		t.Fatalf("segment 1 should be unresolved, got %q", segs[1].VideoURL)
	}
}

func TestResolveTerm(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{respond: func(query string, page int) ([]types.Video, error) {
		if query == "orange cat" && page == 1 {
			return []types.Video{video(1, "a.mp4"), video(2, "b.mp4"), video(3, "c.mp4")}, nil
		}
		return nil, nil
	}}

	r := newTestResolver(search, testConfig())
	v, f, ok, err := r.ResolveTerm(context.Background(), "key", "orange cat", 3)
	if err != nil || !ok {
		t.Fatalf("expected a pick, got ok=%v err=%v", ok, err)
	}
	valid := map[string]bool{"a.mp4": true, "b.mp4": true, "c.mp4": true}
	if !valid[f.Link] {
		t.Fatalf("picked file %q is not one of the returned candidates", f.Link)
	}
	if v.ID < 1 || v.ID > 3 {
		t.Fatalf("picked video %d is not one of the returned candidates", v.ID)
	}

	_, _, ok, err = r.ResolveTerm(context.Background(), "key", "nothing", 3)
	if err != nil || ok {
		t.Fatalf("expected no pick for empty result, got ok=%v err=%v", ok, err)
	}
}

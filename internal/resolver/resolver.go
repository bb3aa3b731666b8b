// Package resolver is the segment resolution engine: it maps every raw
// segment to a stock video through a three-tier fallback search, running all
// segments concurrently under a staggered schedule so the provider is never
// hit in one burst.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ricardomdn/broll/internal/domain/selection"
	"github.com/ricardomdn/broll/internal/ports"
	"github.com/ricardomdn/broll/internal/types"
)

// fallbackSuffix marks a search term that came from a backup tier rather
// than the AI suggestions, so it is visible in the manifest.
const fallbackSuffix = " (fallback)"

type Config struct {
	// StaggerInterval is the per-segment start delay: segment i waits
	// i × StaggerInterval before its first search.
	StaggerInterval time.Duration
	// TierGap is the pause before each individual search within a segment.
	TierGap time.Duration

	// FallbackTerms is the generic term pool of tier 2; one is drawn at
	// random together with a page in [1, FallbackMaxPage].
	FallbackTerms   []string
	FallbackMaxPage int

	// SafetyTerm is the single deterministic tier-3 query.
	SafetyTerm string

	// TermTopN and FallbackTopN bound the random video pick per tier.
	TermTopN     int
	FallbackTopN int
}

type Resolver struct {
	search ports.VideoSearcher
	picker selection.Picker
	rng    selection.Rand
	cfg    Config
	logf   func(format string, args ...any)

	// sleep is swapped for a no-op in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(search ports.VideoSearcher, picker selection.Picker, rng selection.Rand, cfg Config, logf func(string, ...any)) *Resolver {
	if rng == nil {
		rng = selection.NewRand()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if cfg.FallbackMaxPage <= 0 {
		cfg.FallbackMaxPage = 1
	}
	return &Resolver{
		search: search,
		picker: picker,
		rng:    rng,
		cfg:    cfg,
		logf:   logf,
		sleep:  sleepCtx,
	}
}

// ResolveAll resolves every raw segment concurrently and returns results in
// the original order. A segment that exhausts all tiers simply ends up with
// no asset; only an invalid credential fails the whole batch, cancelling the
// remaining segments.
func (r *Resolver) ResolveAll(ctx context.Context, apiKey string, raws []types.RawSegment) ([]types.ScriptSegment, error) {
	results := make([]types.ScriptSegment, len(raws))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		fatalErr error
	)
	for i, raw := range raws {
		wg.Add(1)
		go func(idx int, raw types.RawSegment) {
			defer wg.Done()
			seg, err := r.resolveOne(ctx, apiKey, raw, idx)
			results[idx] = seg
			if err != nil && errors.Is(err, ports.ErrInvalidAPIKey) {
				once.Do(func() {
					fatalErr = err
					cancel()
				})
			}
		}(i, raw)
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	return results, nil
}

// resolveOne walks the fallback tiers for a single segment. The returned
// segment always carries the raw text and term list; the asset fields are
// set only when some tier produced a candidate. The only errors returned
// are credential rejection and context cancellation.
func (r *Resolver) resolveOne(ctx context.Context, apiKey string, raw types.RawSegment, idx int) (types.ScriptSegment, error) {
	seg := types.ScriptSegment{
		ID:             uuid.NewString(),
		Text:           raw.Text,
		AllSearchTerms: raw.SearchTerms,
	}
	if len(raw.SearchTerms) > 0 {
		seg.SearchTerm = raw.SearchTerms[0]
	}

	if err := r.sleep(ctx, time.Duration(idx)*r.cfg.StaggerInterval); err != nil {
		return seg, err
	}

	// Tier 1: AI-suggested terms, most specific first.
	for _, term := range raw.SearchTerms {
		if err := r.sleep(ctx, r.cfg.TierGap); err != nil {
			return seg, err
		}
		videos, err := r.search.Search(ctx, apiKey, term, 1)
		if err != nil {
			return seg, err
		}
		if v, f, ok := r.picker.Pick(videos, r.cfg.TermTopN); ok {
			seg.SetAsset(term, v, f)
			return seg, nil
		}
	}

	// Tier 2: one randomized generic term on a randomized page, so sibling
	// segments falling back at the same time diversify. Skipped entirely
	// when no fallback terms are configured.
	if len(r.cfg.FallbackTerms) > 0 {
		term := r.cfg.FallbackTerms[r.rng.Intn(len(r.cfg.FallbackTerms))]
		page := 1 + r.rng.Intn(r.cfg.FallbackMaxPage)
		if err := r.sleep(ctx, r.cfg.TierGap); err != nil {
			return seg, err
		}
		r.logf("segment %d: no results for AI terms, trying fallback %q page %d", idx+1, term, page)
		videos, err := r.search.Search(ctx, apiKey, term, page)
		if err != nil {
			return seg, err
		}
		if v, f, ok := r.picker.Pick(videos, r.cfg.FallbackTopN); ok {
			seg.SetAsset(term+fallbackSuffix, v, f)
			return seg, nil
		}
	}

	// Tier 3: the deterministic safety net.
	if err := r.sleep(ctx, r.cfg.TierGap); err != nil {
		return seg, err
	}
	videos, err := r.search.Search(ctx, apiKey, r.cfg.SafetyTerm, 1)
	if err != nil {
		return seg, err
	}
	if v, f, ok := r.picker.Pick(videos, r.cfg.FallbackTopN); ok {
		seg.SetAsset(r.cfg.SafetyTerm, v, f)
		return seg, nil
	}

	r.logf("segment %d: unresolved after all tiers", idx+1)
	return seg, nil
}

// ResolveTerm performs the single-search resolution used by both
// re-resolution entry points: one page-1 search with the given term, pick
// among the first topN candidates. ok is false when the term yielded
// nothing, in which case the caller must leave the segment untouched.
func (r *Resolver) ResolveTerm(ctx context.Context, apiKey, term string, topN int) (types.Video, types.VideoFile, bool, error) {
	videos, err := r.search.Search(ctx, apiKey, term, 1)
	if err != nil {
		return types.Video{}, types.VideoFile{}, false, fmt.Errorf("search %q: %w", term, err)
	}
	v, f, ok := r.picker.Pick(videos, topN)
	return v, f, ok, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

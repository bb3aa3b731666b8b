package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ricardomdn/broll/internal/ports"
	"github.com/ricardomdn/broll/internal/resolver"
	"github.com/ricardomdn/broll/internal/session"
	"github.com/ricardomdn/broll/internal/types"
)

// Configuration errors, detected before any network call.
var (
	ErrMissingAPIKey      = errors.New("both Gemini and Pexels API keys are required")
	ErrMissingVideoAPIKey = errors.New("a Pexels API key is required")
	ErrEmptyScript        = errors.New("script is empty")
	ErrNoSegments         = errors.New("the AI returned no usable segments")
)

type Deps struct {
	Analyzer ports.ScriptAnalyzer
	Resolver *resolver.Resolver

	// RefineTopN bounds the random pick during single-segment re-resolution.
	RefineTopN int

	Logf func(format string, args ...any)
}

type Usecase struct {
	d     Deps
	state *session.Manager
}

func New(d Deps) *Usecase {
	if d.Logf == nil {
		d.Logf = func(string, ...any) {}
	}
	if d.RefineTopN <= 0 {
		d.RefineTopN = 3
	}
	return &Usecase{d: d, state: session.NewManager()}
}

// Session exposes the segment list for callers that need to seed or inspect
// it (the CLI loads a saved manifest into it before refining).
func (u *Usecase) Session() *session.Manager { return u.state }

// Generate runs the full batch: segmentation, then concurrent resolution of
// every segment. On success the session list is replaced wholesale; on any
// failure, including a rejected video key mid-batch, the previous list is
// left exactly as it was.
func (u *Usecase) Generate(ctx context.Context, keys types.APIKeys, script string) ([]types.ScriptSegment, error) {
	if keys.Gemini == "" || keys.Pexels == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(script) == "" {
		return nil, ErrEmptyScript
	}

	u.d.Logf("splitting script sentence by sentence")
	raws, err := u.d.Analyzer.Segment(ctx, keys.Gemini, script)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, ErrNoSegments
	}

	u.d.Logf("searching clips for %d segments", len(raws))
	segments, err := u.d.Resolver.ResolveAll(ctx, keys.Pexels, raws)
	if err != nil {
		return nil, err
	}

	u.state.Replace(segments)
	return segments, nil
}

// Refine re-resolves exactly one segment with a caller-supplied term. When
// the search yields nothing, or the list was regenerated underneath the
// edit, the segment keeps its prior state and the error says why.
func (u *Usecase) Refine(ctx context.Context, keys types.APIKeys, id, term string) (types.ScriptSegment, error) {
	if keys.Pexels == "" {
		return types.ScriptSegment{}, ErrMissingVideoAPIKey
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return types.ScriptSegment{}, errors.New("search term is empty")
	}

	_, version, err := u.state.Get(id)
	if err != nil {
		return types.ScriptSegment{}, err
	}

	v, f, ok, err := u.d.Resolver.ResolveTerm(ctx, keys.Pexels, term, u.d.RefineTopN)
	if err != nil {
		return types.ScriptSegment{}, err
	}
	if !ok {
		return types.ScriptSegment{}, fmt.Errorf("no videos found for %q", term)
	}

	if err := u.state.Patch(id, version, func(s *types.ScriptSegment) {
		s.SetAsset(term, v, f)
	}); err != nil {
		return types.ScriptSegment{}, err
	}
	seg, _, err := u.state.Get(id)
	return seg, err
}

// RefineWithAI asks the text service for a materially different term for the
// segment, then runs the same single-search path as Refine. When the text
// service call itself fails the segment is left exactly as it was; only an
// empty suggestion falls back to the segment's current term.
func (u *Usecase) RefineWithAI(ctx context.Context, keys types.APIKeys, id string) (types.ScriptSegment, error) {
	if keys.Gemini == "" || keys.Pexels == "" {
		return types.ScriptSegment{}, ErrMissingAPIKey
	}

	seg, _, err := u.state.Get(id)
	if err != nil {
		return types.ScriptSegment{}, err
	}

	term, err := u.d.Analyzer.AlternativeTerm(ctx, keys.Gemini, seg.Text, seg.SearchTerm)
	if err != nil {
		u.d.Logf("alternative term generation failed, segment keeps %q: %v", seg.SearchTerm, err)
		return seg, nil
	}
	if strings.TrimSpace(term) == "" {
		term = seg.SearchTerm
	}

	return u.Refine(ctx, keys, id, term)
}

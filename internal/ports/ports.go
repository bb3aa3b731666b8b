package ports

import (
	"context"
	"errors"

	"github.com/ricardomdn/broll/internal/types"
)

// ErrInvalidAPIKey is returned by a VideoSearcher when the service rejects
// the credential. It is the only search failure that aborts a whole batch
// resolution instead of advancing to the next fallback tier.
var ErrInvalidAPIKey = errors.New("invalid video service API key")

// ScriptAnalyzer turns a raw narration script into ordered segments with
// candidate search terms, and proposes replacement terms for one segment.
type ScriptAnalyzer interface {
	Segment(ctx context.Context, apiKey, script string) ([]types.RawSegment, error)

	// AlternativeTerm returns a materially different search term for the
	// given segment text. An empty result means the caller should keep
	// currentTerm.
	AlternativeTerm(ctx context.Context, apiKey, text, currentTerm string) (string, error)
}

// VideoSearcher returns one page of candidate videos for a query. A nil
// slice with a nil error means no results; transient provider failures are
// absorbed by implementations and reported the same way.
type VideoSearcher interface {
	Search(ctx context.Context, apiKey, query string, page int) ([]types.Video, error)
}

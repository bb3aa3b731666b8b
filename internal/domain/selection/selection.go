// Package selection decides which video, and which file variant of it, a
// segment ends up with.
package selection

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ricardomdn/broll/internal/types"
)

// MinHDWidth is the minimum width for a file to count as a usable HD pick.
const MinHDWidth = 1280

// Rand is the random source behind video picking. Production code wraps
// math/rand; tests substitute a scripted source.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a time-seeded source safe for concurrent segment tasks.
func NewRand() Rand {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Picker selects one playable video from a search batch.
type Picker struct {
	rng Rand
}

func NewPicker(rng Rand) Picker {
	if rng == nil {
		rng = NewRand()
	}
	return Picker{rng: rng}
}

// Pick chooses uniformly at random among the first topN videos that have at
// least one file variant, then picks the best file of the chosen video.
// topN is clamped to the number of usable candidates. Repetition across
// segments is reduced, not prevented: two segments with the same query can
// still legitimately draw the same video.
func (p Picker) Pick(videos []types.Video, topN int) (types.Video, types.VideoFile, bool) {
	usable := make([]types.Video, 0, len(videos))
	for _, v := range videos {
		if len(v.Files) > 0 {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return types.Video{}, types.VideoFile{}, false
	}

	n := topN
	if n <= 0 || n > len(usable) {
		n = len(usable)
	}
	v := usable[p.rng.Intn(n)]

	f, ok := BestFile(v)
	if !ok {
		return types.Video{}, types.VideoFile{}, false
	}
	return v, f, true
}

// BestFile prefers an HD variant at least MinHDWidth wide, then any SD
// variant, then the first variant in the list.
func BestFile(v types.Video) (types.VideoFile, bool) {
	if len(v.Files) == 0 {
		return types.VideoFile{}, false
	}
	for _, f := range v.Files {
		if f.Quality == "hd" && f.Width >= MinHDWidth {
			return f, true
		}
	}
	for _, f := range v.Files {
		if f.Quality == "sd" {
			return f, true
		}
	}
	return v.Files[0], true
}

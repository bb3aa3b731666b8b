// Package session holds the one piece of shared mutable state: the current
// segment list. The list is replaced wholesale by a batch run and patched
// one element at a time by re-resolution; the two are kept from racing
// destructively by a version check instead of last-writer-wins.
package session

import (
	"errors"
	"sync"

	"github.com/ricardomdn/broll/internal/types"
)

// ErrStale is returned when a patch was prepared against a list that has
// since been replaced by a newer batch run.
var ErrStale = errors.New("segment list changed since the edit started")

// ErrNotFound is returned when no segment carries the requested id.
var ErrNotFound = errors.New("segment not found")

type Manager struct {
	mu       sync.RWMutex
	segments []types.ScriptSegment
	version  uint64
}

func NewManager() *Manager {
	return &Manager{}
}

// Snapshot returns a copy of the current list and the version it belongs
// to. Pass that version to Patch to detect an intervening Replace.
func (m *Manager) Snapshot() ([]types.ScriptSegment, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ScriptSegment, len(m.segments))
	copy(out, m.segments)
	return out, m.version
}

// Get returns the segment with the given id from the current list.
func (m *Manager) Get(id string) (types.ScriptSegment, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.segments {
		if s.ID == id {
			return s, m.version, nil
		}
	}
	return types.ScriptSegment{}, m.version, ErrNotFound
}

// Replace installs a freshly resolved list and invalidates any in-flight
// patches.
func (m *Manager) Replace(segments []types.ScriptSegment) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = make([]types.ScriptSegment, len(segments))
	copy(m.segments, segments)
	m.version++
	return m.version
}

// Patch applies apply to exactly one segment, identified by id, if and only
// if the list version still matches the one the caller snapshotted. Sibling
// segments are never touched.
func (m *Manager) Patch(id string, version uint64, apply func(*types.ScriptSegment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version != version {
		return ErrStale
	}
	for i := range m.segments {
		if m.segments[i].ID == id {
			apply(&m.segments[i])
			return nil
		}
	}
	return ErrNotFound
}

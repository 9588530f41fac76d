package processor

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"webpify/internal/errs"
)

// Tracker records variants created while rewriting sources so they can be
// removed before the next full pass counts the tree again.
type Tracker struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Track records path. It reports false when path was already tracked.
func (t *Tracker) Track(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[path]; ok {
		return false
	}
	t.seen[path] = struct{}{}
	t.order = append(t.order, path)
	return true
}

// Drain returns every tracked path in insertion order and empties the tracker.
func (t *Tracker) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.order
	t.order = nil
	t.seen = make(map[string]struct{})
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Paths returns a copy of the tracked paths.
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

type trackerState struct {
	Transients []string `yaml:"transients"`
}

// SaveState writes the tracked paths to a YAML file so a later process can
// purge them.
func (t *Tracker) SaveState(path string) error {
	data, err := yaml.Marshal(trackerState{Transients: t.Paths()})
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o644)
}

// LoadTracker reads a state file written by SaveState. A missing file yields
// an empty tracker.
func LoadTracker(path string) (*Tracker, error) {
	t := NewTracker()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, errs.IO("read state", path, err)
	}

	var state trackerState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, errs.IO("parse state", path, err)
	}
	for _, p := range state.Transients {
		t.Track(p)
	}
	return t, nil
}

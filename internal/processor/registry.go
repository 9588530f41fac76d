package processor

import "sync"

// Registry remembers which absolute paths this run has already started to
// convert. Loaders may hand the same image over many times during one build;
// only the first visit does any work.
type Registry struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Claim registers path and reports whether this call was the first to do so.
func (r *Registry) Claim(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[path]; ok {
		return false
	}
	r.seen[path] = struct{}{}
	return true
}

func (r *Registry) Has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[path]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Reset forgets every path. Call it only at the start of a full pass.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]struct{})
}

package navigation

import "sync"

// MemoryRouter is an in-memory Router that keeps the current path and the
// history of replacements. It notifies an optional listener after Replace,
// which is how a Guard learns about guard-initiated navigation.
type MemoryRouter struct {
	mu       sync.Mutex
	path     string
	replaced []string
	listener func(path string)
}

// NewMemoryRouter starts at path.
func NewMemoryRouter(path string) *MemoryRouter {
	return &MemoryRouter{path: path}
}

// OnChange sets the listener called after every path change.
func (r *MemoryRouter) OnChange(fn func(path string)) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

// CurrentGroup classifies the current path.
func (r *MemoryRouter) CurrentGroup() RouteGroup {
	return Classify(r.Path())
}

// Path returns the current path.
func (r *MemoryRouter) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Replace swaps the current path and records it.
func (r *MemoryRouter) Replace(path string) {
	r.mu.Lock()
	r.path = path
	r.replaced = append(r.replaced, path)
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(path)
	}
}

// Navigate models a user-initiated navigation. It is not recorded as a replacement.
func (r *MemoryRouter) Navigate(path string) {
	r.mu.Lock()
	r.path = path
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(path)
	}
}

// Replacements returns a copy of every path passed to Replace.
func (r *MemoryRouter) Replacements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.replaced))
	copy(out, r.replaced)
	return out
}

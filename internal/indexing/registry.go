package indexing

import "sync"

// Registry tracks in-flight tasks by height so a reorg can cancel every
// task above the fork point (§4.6 step 2). It implements
// chainwatch.Canceller without internal/indexing importing internal/
// chainwatch, keeping the dependency edge one-directional.
type Registry struct {
	mu    sync.Mutex
	tasks map[uint64]*Task
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[uint64]*Task)}
}

// Track registers t as in-flight. A task stays tracked, also after it
// reaches a terminal state, until Untrack is called.
func (r *Registry) Track(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Height] = t
}

// Untrack removes a task from the registry, typically once it has reached
// COMPLETE, ABORTED or REVERTED.
func (r *Registry) Untrack(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[t.Height]; ok && cur == t {
		delete(r.tasks, t.Height)
	}
}

// CancelAbove requests cooperative cancellation on every tracked task at a
// height strictly greater than forkPoint.
func (r *Registry) CancelAbove(forkPoint uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for height, t := range r.tasks {
		if height > forkPoint {
			t.Cancel()
		}
	}
}

// Package indexing implements IndexingTask: the per-block state machine
// that drives a block from raw-fetch through execution to a persisted,
// hook-notified result (§4.5).
//
// No direct teacher state-machine grounding exists; the explicit states and
// cooperative-cancellation safepoints are a novel design built by analogy
// to the teacher's manager-style structs (ExecutionManager,
// FinalizationManager in core/) that hold step-scoped mutable state behind
// a mutex. google/uuid gives each task a correlation id for logging and
// metrics.
package indexing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// State is one state in the IndexingTask machine (§4.5).
type State int

const (
	StateNew State = iota
	StatePrefetching
	StateReady
	StateExecuting
	StateFinalizing
	StateComplete
	StateAborted
	StateReverted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StatePrefetching:
		return "PREFETCHING"
	case StateReady:
		return "READY"
	case StateExecuting:
		return "EXECUTING"
	case StateFinalizing:
		return "FINALIZING"
	case StateComplete:
		return "COMPLETE"
	case StateAborted:
		return "ABORTED"
	case StateReverted:
		return "REVERTED"
	default:
		return "UNKNOWN"
	}
}

func (s State) terminal() bool {
	return s == StateComplete || s == StateAborted || s == StateReverted
}

// Task is a single-use, per-block IndexingTask. Cancellation is cooperative:
// Cancel flips a flag observed at the next safepoint (the start and end of
// Prefetch, BeginExecute, and the EXECUTING -> FINALIZING step before
// Finalize) rather than interrupting work in progress. The flag is not
// consulted between transactions during Process.
type Task struct {
	ID     uuid.UUID
	Height uint64

	mu       sync.Mutex
	state    State
	used     bool
	canceled bool

	block *types.Block
}

// NewTask creates a new task for height. Each call produces a fresh task;
// a task that has reached a terminal state must be discarded, not reused
// (§4.5 "A task is single-use; refresh creates a new task at the same
// height").
func NewTask(height uint64) *Task {
	return &Task{ID: uuid.New(), Height: height, state: StateNew}
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancel requests cooperative cancellation. It does not itself transition
// the task; the next safepoint observes the request and moves to ABORTED.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canceled = true
}

// checkSafepointLocked observes a cancellation request or ctx's own cancellation,
// transitioning to ABORTED and returning a Cancelled error if either fired.
// Caller must hold t.mu.
func (t *Task) checkSafepointLocked(ctx context.Context) error {
	if t.canceled || ctx.Err() != nil {
		t.state = StateAborted
		return errkind.New(errkind.Cancelled, "indexing: task aborted at safepoint")
	}
	return nil
}

func (t *Task) transitionLocked(from, to State) error {
	if t.used && t.state.terminal() {
		return errkind.New(errkind.InvalidInput, "indexing: task already reached a terminal state")
	}
	if t.state != from {
		return errkind.New(errkind.InvalidInput, "indexing: invalid transition "+t.state.String()+" -> "+to.String())
	}
	t.state = to
	return nil
}

// BlockFetcher retrieves the raw block for a task's height from the
// base-chain RPC collaborator.
type BlockFetcher func(ctx context.Context, height uint64) (*types.Block, error)

// Prefetch runs the NEW -> PREFETCHING -> READY transition: it fetches the
// raw block and deserializes it (fetch returns an already-deserialized
// Block, so deserialization is implicit in a successful fetch).
func (t *Task) Prefetch(ctx context.Context, fetch BlockFetcher) error {
	t.mu.Lock()
	if err := t.transitionLocked(StateNew, StatePrefetching); err != nil {
		t.mu.Unlock()
		return err
	}
	if err := t.checkSafepointLocked(ctx); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	block, err := fetch(ctx, t.Height)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = StateReverted
		return errkind.Wrap(errkind.Internal, err, "indexing: prefetch failed")
	}
	if err := t.checkSafepointLocked(ctx); err != nil {
		return err
	}
	t.block = block
	return t.transitionLocked(StatePrefetching, StateReady)
}

// Block returns the prefetched block, valid once the task has reached READY.
func (t *Task) Block() *types.Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.block
}

// BeginExecute runs the READY -> EXECUTING transition.
func (t *Task) BeginExecute(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkSafepointLocked(ctx); err != nil {
		return err
	}
	return t.transitionLocked(StateReady, StateExecuting)
}

// FinishExecute runs the EXECUTING -> FINALIZING transition, or ->REVERTED
// if reverted reports the block failed to process (§4.5 "EXECUTING ->
// FINALIZING after the processor returns a non-reverted block").
func (t *Task) FinishExecute(ctx context.Context, reverted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if reverted {
		if err := t.transitionLocked(StateExecuting, StateReverted); err != nil {
			return err
		}
		t.used = true
		return nil
	}
	if err := t.checkSafepointLocked(ctx); err != nil {
		return err
	}
	return t.transitionLocked(StateExecuting, StateFinalizing)
}

// Complete runs the FINALIZING -> COMPLETE transition, performed after the
// StorageEngine commit and hook dispatch have both succeeded.
func (t *Task) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StateFinalizing, StateComplete); err != nil {
		return err
	}
	t.used = true
	return nil
}

// Revert forces the task directly to REVERTED from any non-terminal state
// (§4.5 "Any state -> REVERTED on failure").
func (t *Task) Revert() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.terminal() {
		return
	}
	t.state = StateReverted
	t.used = true
}

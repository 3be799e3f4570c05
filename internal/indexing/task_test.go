package indexing

import (
	"context"
	"errors"
	"testing"

	"github.com/opnet-core/indexer/internal/types"
)

func TestTaskHappyPathTransitions(t *testing.T) {
	task := NewTask(10)
	if task.State() != StateNew {
		t.Fatalf("expected NEW, got %s", task.State())
	}

	fetch := func(ctx context.Context, height uint64) (*types.Block, error) {
		return &types.Block{Header: types.BlockHeader{Height: height}}, nil
	}
	if err := task.Prefetch(context.Background(), fetch); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if task.State() != StateReady {
		t.Fatalf("expected READY, got %s", task.State())
	}

	if err := task.BeginExecute(context.Background()); err != nil {
		t.Fatalf("begin execute: %v", err)
	}
	if task.State() != StateExecuting {
		t.Fatalf("expected EXECUTING, got %s", task.State())
	}

	if err := task.FinishExecute(context.Background(), false); err != nil {
		t.Fatalf("finish execute: %v", err)
	}
	if task.State() != StateFinalizing {
		t.Fatalf("expected FINALIZING, got %s", task.State())
	}

	if err := task.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if task.State() != StateComplete {
		t.Fatalf("expected COMPLETE, got %s", task.State())
	}

	if err := task.BeginExecute(context.Background()); err == nil {
		t.Fatalf("expected error reusing a completed task")
	}
}

func TestTaskPrefetchFailureReverts(t *testing.T) {
	task := NewTask(1)
	fetch := func(ctx context.Context, height uint64) (*types.Block, error) {
		return nil, errors.New("rpc unavailable")
	}
	if err := task.Prefetch(context.Background(), fetch); err == nil {
		t.Fatalf("expected prefetch error")
	}
	if task.State() != StateReverted {
		t.Fatalf("expected REVERTED, got %s", task.State())
	}
}

func TestTaskCancelObservedAtSafepoint(t *testing.T) {
	task := NewTask(1)
	task.Cancel()

	fetch := func(ctx context.Context, height uint64) (*types.Block, error) {
		return &types.Block{}, nil
	}
	err := task.Prefetch(context.Background(), fetch)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if task.State() != StateAborted {
		t.Fatalf("expected ABORTED, got %s", task.State())
	}
}

func TestTaskExecutionFailureReverts(t *testing.T) {
	task := NewTask(1)
	fetch := func(ctx context.Context, height uint64) (*types.Block, error) {
		return &types.Block{}, nil
	}
	if err := task.Prefetch(context.Background(), fetch); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if err := task.BeginExecute(context.Background()); err != nil {
		t.Fatalf("begin execute: %v", err)
	}
	if err := task.FinishExecute(context.Background(), true); err != nil {
		t.Fatalf("finish execute (reverted): %v", err)
	}
	if task.State() != StateReverted {
		t.Fatalf("expected REVERTED, got %s", task.State())
	}
}

func TestTaskRevertFromAnyNonTerminalState(t *testing.T) {
	task := NewTask(1)
	task.Revert()
	if task.State() != StateReverted {
		t.Fatalf("expected REVERTED, got %s", task.State())
	}
	// Reverting again, or from an already-terminal state, is a no-op.
	task.Revert()
	if task.State() != StateReverted {
		t.Fatalf("expected REVERTED to remain stable, got %s", task.State())
	}
}

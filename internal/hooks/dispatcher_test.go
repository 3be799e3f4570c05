package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func okPlugin(name string, calls *int32) Plugin {
	return Plugin{
		Name: name,
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			atomic.AddInt32(calls, 1)
			return nil, false, nil
		},
	}
}

func TestDispatchParallelInvokesAllEligible(t *testing.T) {
	var calls int32
	p1 := okPlugin("p1", &calls)
	p2 := okPlugin("p2", &calls)
	d := New(Config{}, []Plugin{p1, p2}, nil, nil)

	results, err := d.Dispatch(context.Background(), EventBlockPostProcess, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if calls != 2 {
		t.Fatalf("expected both plugins invoked, got %d calls", calls)
	}
}

func TestDispatchFiltersByPermission(t *testing.T) {
	var calls int32
	withPerm := Plugin{
		Name:        "has-perm",
		Permissions: map[string]struct{}{"epochs.onFinalized": {}},
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			atomic.AddInt32(&calls, 1)
			return nil, false, nil
		},
	}
	withoutPerm := Plugin{
		Name: "no-perm",
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			atomic.AddInt32(&calls, 1)
			return nil, false, nil
		},
	}
	d := New(Config{}, []Plugin{withPerm, withoutPerm}, nil, nil)

	results, err := d.Dispatch(context.Background(), EventEpochFinalized, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 1 || results[0].PluginName != "has-perm" {
		t.Fatalf("expected only has-perm to be eligible, got %+v", results)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDispatchSequentialStopsOnFirstFailureWhenNotContinuing(t *testing.T) {
	var order []string
	failing := Plugin{
		Name: "fails",
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			order = append(order, "fails")
			return nil, false, errors.New("boom")
		},
	}
	neverCalled := Plugin{
		Name: "never",
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			order = append(order, "never")
			return nil, false, nil
		},
	}
	d := New(Config{}, []Plugin{failing, neverCalled}, map[Event]EventPolicy{
		EventReorg: {Mode: ModeSequential, Timeout: time.Second, ContinueOnError: false},
	}, nil)

	_, err := d.Dispatch(context.Background(), EventReorg, nil)
	if err == nil {
		t.Fatalf("expected error from failing plugin")
	}
	if len(order) != 1 || order[0] != "fails" {
		t.Fatalf("expected dispatch to stop after first failure, got %v", order)
	}
}

func TestDispatchTimeoutProducesFailureResult(t *testing.T) {
	slow := Plugin{
		Name: "slow",
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			<-ctx.Done()
			return nil, false, ctx.Err()
		},
	}
	d := New(Config{}, []Plugin{slow}, map[Event]EventPolicy{
		EventBlockPostProcess: {Mode: ModeSequential, Timeout: 10 * time.Millisecond, ContinueOnError: true},
	}, nil)

	results, err := d.Dispatch(context.Background(), EventBlockPostProcess, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected a failed result due to timeout, got %+v", results)
	}
}

func TestDispatchReindexRequiredReportsHandled(t *testing.T) {
	handler := Plugin{
		Name: "reindexer",
		Handler: func(ctx context.Context, event Event, payload interface{}) (interface{}, bool, error) {
			return nil, true, nil
		},
	}
	d := New(Config{}, []Plugin{handler}, nil, nil)

	results, err := d.Dispatch(context.Background(), EventReindexRequired, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 1 || !results[0].ReindexHandled {
		t.Fatalf("expected ReindexHandled=true, got %+v", results)
	}
}

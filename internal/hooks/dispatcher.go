// Package hooks implements the HookDispatcher (§4.7): a plugin event bus
// supporting Parallel/Sequential execution modes, per-event timeouts,
// continue_on_error, permission-tag eligibility filtering, and a
// token-bucket back-pressure gate on non-Reorg dispatches.
//
// Grounded on core/workflow_integrations.go's named-registry-executed-
// sequentially shape (ExecuteWorkflow iterating wf.Actions) and
// core/network.go's single-hook-variable Broadcast/HandleNetworkMessage
// dispatch. Both are single-mode (sequential only, no timeout, no
// eligibility filter); this package generalizes to spec.md §4.7's fuller
// contract using golang.org/x/sync/errgroup for bounded parallel fan-out
// and golang.org/x/time/rate as the back-pressure queue's admission gate.
package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/opnet-core/indexer/pkg/errkind"
)

// Event names the fixed taxonomy of dispatchable hooks (§4.7).
type Event string

const (
	EventBlockPreProcess  Event = "BlockPreProcess"
	EventBlockPostProcess Event = "BlockPostProcess"
	EventBlockChange      Event = "BlockChange"
	EventEpochChange      Event = "EpochChange"
	EventEpochFinalized   Event = "EpochFinalized"
	EventMempoolTx        Event = "MempoolTransaction"
	EventReorg            Event = "Reorg"
	EventReindexRequired  Event = "ReindexRequired"
	EventPurgeBlocks      Event = "PurgeBlocks"
	EventLoad             Event = "Load"
	EventUnload           Event = "Unload"
	EventEnable           Event = "Enable"
	EventDisable          Event = "Disable"
)

// ExecutionMode selects how a single event's eligible plugins are invoked.
type ExecutionMode int

const (
	ModeParallel ExecutionMode = iota
	ModeSequential
)

// EventPolicy is the per-event dispatch configuration (§4.7).
type EventPolicy struct {
	Mode              ExecutionMode
	Timeout           time.Duration
	RequiredPermission string
	ContinueOnError   bool
}

// DefaultPolicies mirrors §4.7's stated defaults: block hooks are parallel
// with short timeouts, reorg is sequential/blocking with a long timeout and
// never continues past a failure, lifecycle hooks are sequential.
func DefaultPolicies() map[Event]EventPolicy {
	blockPolicy := EventPolicy{Mode: ModeParallel, Timeout: 5 * time.Second, ContinueOnError: true}
	lifecyclePolicy := EventPolicy{Mode: ModeSequential, Timeout: 5 * time.Second, ContinueOnError: false}
	return map[Event]EventPolicy{
		EventBlockPreProcess:  blockPolicy,
		EventBlockPostProcess: blockPolicy,
		EventBlockChange:      {Mode: ModeParallel, Timeout: 5 * time.Second, RequiredPermission: "blocks.onChange", ContinueOnError: true},
		EventEpochChange:      blockPolicy,
		EventEpochFinalized:   {Mode: ModeParallel, Timeout: 5 * time.Second, RequiredPermission: "epochs.onFinalized", ContinueOnError: true},
		EventMempoolTx:        blockPolicy,
		EventReorg:            {Mode: ModeSequential, Timeout: 5 * time.Minute, ContinueOnError: false},
		EventReindexRequired:  {Mode: ModeSequential, Timeout: 30 * time.Second, ContinueOnError: true},
		EventPurgeBlocks:      blockPolicy,
		EventLoad:             lifecyclePolicy,
		EventUnload:           lifecyclePolicy,
		EventEnable:           lifecyclePolicy,
		EventDisable:          lifecyclePolicy,
	}
}

// Result is what every plugin invocation returns (§4.7).
type Result struct {
	PluginName string
	Success    bool
	DurationMS int64
	Error      error
	// ReindexHandled is only meaningful for EventReindexRequired: true means
	// the plugin satisfied the reindex requirement itself.
	ReindexHandled bool
}

// Plugin is one registered hook subscriber.
type Plugin struct {
	Name        string
	Permissions map[string]struct{}
	Handler     func(ctx context.Context, event Event, payload interface{}) (result interface{}, reindexHandled bool, err error)
}

func (p Plugin) eligible(required string) bool {
	if required == "" {
		return true
	}
	_, ok := p.Permissions[required]
	return ok
}

// Dispatcher is the HookDispatcher.
type Dispatcher struct {
	mu       sync.RWMutex
	plugins  []Plugin
	policies map[Event]EventPolicy
	limiter  *rate.Limiter
	log      *logrus.Logger
}

// Config tunes back-pressure (§5 "Back-pressure"): HighWaterMark sets a
// token bucket refilled at HighWaterMark dispatches per second with a burst
// of HighWaterMark, and a dispatch that finds the bucket empty is rejected.
// The gate does not count in-flight dispatches and does not queue rejected
// ones. The Reorg event is never subject to this gate; it always blocks.
type Config struct {
	HighWaterMark int
}

// New constructs a Dispatcher with the given plugins (registration order is
// preserved for Sequential dispatch) and policy overrides merged over
// DefaultPolicies.
func New(cfg Config, plugins []Plugin, policyOverrides map[Event]EventPolicy, log *logrus.Logger) *Dispatcher {
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = 64
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	policies := DefaultPolicies()
	for ev, p := range policyOverrides {
		policies[ev] = p
	}
	return &Dispatcher{
		plugins:  append([]Plugin(nil), plugins...),
		policies: policies,
		limiter:  rate.NewLimiter(rate.Limit(cfg.HighWaterMark), cfg.HighWaterMark),
		log:      log,
	}
}

// Register adds a plugin, appended to the sequential ordering.
func (d *Dispatcher) Register(p Plugin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plugins = append(d.plugins, p)
}

// Dispatch fans an event out to every eligible plugin according to the
// event's policy, returning one Result per invoked plugin. Reorg dispatch
// is never subject to the back-pressure gate and always blocks until every
// plugin acknowledges (§4.6 step 4, §5 "the Reorg hook is never dropped and
// always blocks").
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, payload interface{}) ([]Result, error) {
	d.mu.RLock()
	policy, ok := d.policies[event]
	plugins := append([]Plugin(nil), d.plugins...)
	d.mu.RUnlock()
	if !ok {
		policy = EventPolicy{Mode: ModeSequential, Timeout: 5 * time.Second, ContinueOnError: true}
	}

	eligible := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.eligible(policy.RequiredPermission) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	if event != EventReorg {
		if !d.limiter.Allow() {
			d.log.WithField("event", string(event)).Warn("hooks: dispatch rejected, back-pressure high-water mark reached")
			return nil, errkind.New(errkind.Backpressure, "hooks: high-water mark exceeded for event "+string(event))
		}
	}

	switch policy.Mode {
	case ModeParallel:
		return d.dispatchParallel(ctx, eligible, event, payload, policy)
	default:
		return d.dispatchSequential(ctx, eligible, event, payload, policy)
	}
}

func (d *Dispatcher) invokeOne(ctx context.Context, p Plugin, event Event, payload interface{}, timeout time.Duration) Result {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result         interface{}
		reindexHandled bool
		err            error
	}
	done := make(chan outcome, 1)
	go func() {
		res, reindexHandled, err := p.Handler(callCtx, event, payload)
		done <- outcome{res, reindexHandled, err}
	}()

	select {
	case o := <-done:
		return Result{
			PluginName:     p.Name,
			Success:        o.err == nil,
			DurationMS:     time.Since(start).Milliseconds(),
			Error:          o.err,
			ReindexHandled: o.reindexHandled,
		}
	case <-callCtx.Done():
		return Result{
			PluginName: p.Name,
			Success:    false,
			DurationMS: time.Since(start).Milliseconds(),
			Error:      errkind.New(errkind.Timeout, "hooks: plugin "+p.Name+" timed out on event "+string(event)),
		}
	}
}

func (d *Dispatcher) dispatchParallel(ctx context.Context, plugins []Plugin, event Event, payload interface{}, policy EventPolicy) ([]Result, error) {
	results := make([]Result, len(plugins))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plugins {
		i, p := i, p
		g.Go(func() error {
			r := d.invokeOne(gctx, p, event, payload, policy.Timeout)
			results[i] = r
			if !r.Success && !policy.ContinueOnError {
				return r.Error
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !policy.ContinueOnError {
		return results, errkind.Wrap(errkind.Internal, err, "hooks: parallel dispatch aborted on plugin failure")
	}
	return results, nil
}

func (d *Dispatcher) dispatchSequential(ctx context.Context, plugins []Plugin, event Event, payload interface{}, policy EventPolicy) ([]Result, error) {
	results := make([]Result, 0, len(plugins))
	for _, p := range plugins {
		r := d.invokeOne(ctx, p, event, payload, policy.Timeout)
		results = append(results, r)
		if !r.Success && !policy.ContinueOnError {
			return results, errkind.Wrap(errkind.Internal, r.Error, "hooks: sequential dispatch stopped on plugin failure")
		}
	}
	return results, nil
}

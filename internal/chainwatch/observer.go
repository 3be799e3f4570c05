// Package chainwatch implements ChainObserver/ReorgDetector (§4.6): it
// watches the base-chain RPC for new tips, rechecks the parent chain of the
// last K persisted headers for a divergence from the persisted canonical
// hash, and drives the five-step reorg recovery procedure.
//
// Grounded on core/chain_fork_manager.go's ChainForkManager
// (fork-branch bookkeeping, AddForkBlock/ResolveForks/RecoverLongestFork,
// fork-point comparison by branch length). That shape is generalized here
// from peer-gossiped fork blocks to RPC-polled canonical-hash comparison
// (§4.6's model), and reorg resolution always rewinds to the fork point
// rather than racing branch lengths, since the indexer trusts the
// base-chain RPC's own canonical view rather than arbitrating between
// competing local branches.
package chainwatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opnet-core/indexer/internal/rpcclient"
	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// Canceller is implemented by the in-flight task registry (internal/indexing
// callers): CancelAbove(height) is invoked once with the fork point and
// cancels every tracked task above it.
type Canceller interface {
	CancelAbove(height uint64)
}

// ReorgHook is invoked once the fork point is determined and storage has
// been rolled back, but before resuming indexing. Dispatch is sequential
// and blocking per §4.6 step 4; the HookDispatcher supplies the concrete
// implementation.
type ReorgHook func(ctx context.Context, fromBlock, toBlock uint64, reason string) error

// Config tunes the observer.
type Config struct {
	// ReorgDepth (K) bounds how many of the most recently persisted headers
	// are rechecked against the RPC's canonical view on every poll.
	ReorgDepth uint64
	PollEvery  time.Duration
}

// Observer is the ChainObserver/ReorgDetector.
type Observer struct {
	cfg    Config
	rpc    *rpcclient.Client
	store  *storage.StorageEngine
	cancel Canceller
	hook   ReorgHook
	log    *logrus.Logger
}

// New constructs an Observer. hook may be nil, in which case reorg recovery
// proceeds without dispatching the REORG event (used in tests).
func New(cfg Config, rpc *rpcclient.Client, store *storage.StorageEngine, cancel Canceller, hook ReorgHook, log *logrus.Logger) *Observer {
	if cfg.ReorgDepth == 0 {
		cfg.ReorgDepth = 6
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 10 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Observer{cfg: cfg, rpc: rpc, store: store, cancel: cancel, hook: hook, log: log}
}

// Run polls until ctx is cancelled, checking for a reorg on every tick.
func (o *Observer) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.CheckOnce(ctx); err != nil {
				o.log.WithError(err).Warn("chainwatch: reorg check failed")
			}
		}
	}
}

// CheckOnce performs a single reorg check: it rechecks the parent chain of
// the last ReorgDepth persisted headers against the RPC's canonical hash at
// each height, and runs recovery if a divergence is found.
func (o *Observer) CheckOnce(ctx context.Context) error {
	tip, ok := o.store.Blocks().MaxBlockHeight()
	if !ok {
		return nil // nothing persisted yet
	}

	from := uint64(0)
	if tip+1 > o.cfg.ReorgDepth {
		from = tip + 1 - o.cfg.ReorgDepth
	}

	forkPoint, diverged, err := o.findForkPoint(ctx, from, tip)
	if err != nil {
		return err
	}
	if !diverged {
		return nil
	}

	return o.Recover(ctx, forkPoint, tip, "canonical hash mismatch detected by chainwatch poll")
}

// findForkPoint walks heights [from, tip] ascending and returns the highest
// height whose persisted hash still matches the RPC's canonical hash, plus
// whether any divergence was found at all.
func (o *Observer) findForkPoint(ctx context.Context, from, tip uint64) (forkPoint uint64, diverged bool, err error) {
	forkPoint = tip
	for h := from; h <= tip; h++ {
		persisted, err := o.store.Blocks().GetBlockHeader(h)
		if err != nil {
			if errkind.Is(err, errkind.NotFound) {
				continue
			}
			return 0, false, err
		}
		canonicalHex, err := o.rpc.GetBlockHash(ctx, h)
		if err != nil {
			return 0, false, errkind.Wrap(errkind.Internal, err, "chainwatch: getblockhash")
		}
		canonical, ok := types.HashFromHex(canonicalHex)
		if !ok {
			return 0, false, errkind.New(errkind.ProtocolError, "chainwatch: malformed canonical hash from RPC")
		}
		if persisted.Hash != canonical {
			if !diverged {
				diverged = true
				forkPoint = h - 1
			}
		}
	}
	return forkPoint, diverged, nil
}

// Recover runs the five-step reorg procedure (§4.6) from fork point F: cancel
// in-flight tasks above F, roll back storage above F, dispatch REORG, and
// return control to the caller so indexing can resume from F+1.
func (o *Observer) Recover(ctx context.Context, forkPoint, oldTip uint64, reason string) error {
	o.log.WithFields(logrus.Fields{
		"fork_point": forkPoint,
		"old_tip":    oldTip,
	}).Warn("chainwatch: reorg detected, recovering")

	if o.cancel != nil {
		o.cancel.CancelAbove(forkPoint)
	}

	b := o.store.NewBatch()
	b.DeleteFrom(forkPoint + 1)
	if err := o.store.Commit(b); err != nil {
		return errkind.Wrap(errkind.Storage, err, "chainwatch: rollback storage")
	}

	if o.hook != nil {
		if err := o.hook(ctx, forkPoint+1, oldTip, reason); err != nil {
			return errkind.Wrap(errkind.Internal, err, "chainwatch: reorg hook dispatch")
		}
	}

	o.log.WithField("resume_from", forkPoint+1).Info("chainwatch: reorg recovery complete")
	return nil
}

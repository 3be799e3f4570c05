package storage

import (
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// BlockRepo is the typed accessor for block headers (§4.1).
type BlockRepo struct{ e *StorageEngine }

// Blocks returns the block header repository.
func (e *StorageEngine) Blocks() BlockRepo { return BlockRepo{e: e} }

// GetLatestBlock returns the header at the current chain tip.
func (r BlockRepo) GetLatestBlock() (*types.BlockHeader, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	if !r.e.haveBlocks {
		return nil, errkind.New(errkind.NotFound, "storage: no blocks indexed")
	}
	return r.e.blocksByHeight[r.e.maxHeight], nil
}

// GetBlockHeader returns the header at height.
func (r BlockRepo) GetBlockHeader(height uint64) (*types.BlockHeader, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	h, ok := r.e.blocksByHeight[height]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no block at that height")
	}
	return h, nil
}

// GetBlockByHash looks a header up by block hash, a distinct operation from
// GetBlockByChecksum per the Open Question decision recorded in DESIGN.md.
func (r BlockRepo) GetBlockByHash(hash types.Hash) (*types.BlockHeader, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	height, ok := r.e.blocksByHash[hash]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no block with that hash")
	}
	return r.e.blocksByHeight[height], nil
}

// GetBlockByChecksum looks a header up by its checksum root.
func (r BlockRepo) GetBlockByChecksum(checksum types.Hash) (*types.BlockHeader, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	height, ok := r.e.blocksByChecksum[checksum]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no block with that checksum")
	}
	return r.e.blocksByHeight[height], nil
}

// GetHeadersInRange returns headers for [from, to], inclusive, in height
// order, skipping any height that was pruned or never indexed.
func (r BlockRepo) GetHeadersInRange(from, to uint64) []*types.BlockHeader {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	out := make([]*types.BlockHeader, 0, to-from+1)
	for h := from; h <= to; h++ {
		if hdr, ok := r.e.blocksByHeight[h]; ok {
			out = append(out, hdr)
		}
	}
	return out
}

// MaxBlockHeight returns the highest indexed height.
func (r BlockRepo) MaxBlockHeight() (uint64, bool) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	return r.e.maxHeight, r.e.haveBlocks
}

// SaveBlockHeader persists a single header in its own transactional context.
func (r BlockRepo) SaveBlockHeader(h *types.BlockHeader) error {
	b := r.e.NewBatch()
	b.SaveBlockHeader(h)
	return r.e.Commit(b)
}

// SaveBlockHeaders persists a batch of headers atomically (§4.1 "save block
// headers" accepts one or many so a range backfill is one transaction).
func (r BlockRepo) SaveBlockHeaders(hs []*types.BlockHeader) error {
	b := r.e.NewBatch()
	b.SaveBlockHeaders(hs)
	return r.e.Commit(b)
}

// DeleteBlockHeadersFrom rolls back every header at or above height, used by
// reorg handling (§4.6) and by a revert of a single failed block.
func (r BlockRepo) DeleteBlockHeadersFrom(height uint64) error {
	b := r.e.NewBatch()
	b.DeleteFrom(height)
	return r.e.Commit(b)
}

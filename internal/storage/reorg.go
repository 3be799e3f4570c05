package storage

import "fmt"

// deleteFromLocked rolls back every entity recorded at or above height:
// block headers, transactions, deployed contracts, state write history, and
// UTXO creations; UTXOs tombstoned at or above height have their tombstone
// lifted instead of being deleted, since the spend may have consumed an
// output created below height (§4.6 "storage rollback", §4.8 reorg
// restoration). Caller must hold e.mu.
func (e *StorageEngine) deleteFromLocked(height uint64) {
	for h, hdr := range e.blocksByHeight {
		if h >= height {
			delete(e.blocksByHeight, h)
			delete(e.blocksByHash, hdr.Hash)
			delete(e.blocksByChecksum, hdr.ChecksumRoot)
		}
	}
	e.maxHeight = 0
	e.haveBlocks = false
	for h := range e.blocksByHeight {
		if !e.haveBlocks || h > e.maxHeight {
			e.maxHeight = h
			e.haveBlocks = true
		}
	}

	for hash, tx := range e.txsByHash {
		if tx.BlockHeight >= height {
			delete(e.txsByHash, hash)
		}
	}
	for addr, hashes := range e.pendingTxs {
		kept := hashes[:0]
		for _, h := range hashes {
			if tx, ok := e.txsByHash[h]; ok && tx.BlockHeight < height {
				kept = append(kept, h)
			}
		}
		e.pendingTxs[addr] = kept
	}

	for addr, c := range e.contracts {
		if c.DeploymentBlock >= height {
			delete(e.contracts, addr)
			delete(e.contractsByKey, fmt.Sprintf("%x", c.TweakedPublicKey))
		}
	}

	for key, u := range e.utxos {
		if u.BlockHeight >= height {
			delete(e.utxos, key)
			continue
		}
		if u.DeletedAtBlock != nil && *u.DeletedAtBlock >= height {
			u.DeletedAtBlock = nil
		}
	}

	for key, versions := range e.stateHistory {
		kept := versions[:0]
		for _, v := range versions {
			if v.Height < height {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(e.stateHistory, key)
		} else {
			e.stateHistory[key] = kept
		}
	}

	for num, ep := range e.epochsByNumber {
		if ep.StartBlock >= height {
			delete(e.epochsByNumber, num)
		}
	}
	e.haveActive = false
	for num, ep := range e.epochsByNumber {
		if ep.IsOpen() && (!e.haveActive || num > e.activeEpoch) {
			e.activeEpoch = num
			e.haveActive = true
		}
	}
}

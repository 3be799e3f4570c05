package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
	mh "github.com/multiformats/go-multihash"

	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// ContractRepo is the typed accessor for deployed contract metadata and
// bytecode (§4.1, §4.3 "Deployment"). Bytecode is stored zstd-compressed
// when cfg.CompressCode is set and addressed by a CIDv1/sha2-256 digest,
// adapting the teacher's storage.go Pin CID-computation pattern from IPFS
// pinning to content-addressed bytecode lookup.
type ContractRepo struct{ e *StorageEngine }

// Contracts returns the contract repository.
func (e *StorageEngine) Contracts() ContractRepo { return ContractRepo{e: e} }

// BytecodeCID returns the content address for the given (decompressed)
// bytecode, usable as a cache key independent of deployment address.
func BytecodeCID(bytecode []byte) (cid.Cid, error) {
	digest, err := mh.Sum(bytecode, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("storage: hash bytecode: %w", err)
	}
	return cid.NewCidV1(cid.Raw, digest), nil
}

func compressBytecode(code []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(code); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBytecode(compressed []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Get returns contract metadata by address. atHeight is accepted for
// interface symmetry with other repositories' height-scoped reads; contract
// metadata does not change after deployment so it is ignored beyond
// validating the contract existed by then.
func (r ContractRepo) Get(addr types.ContractAddress, atHeight uint64) (*types.ContractInformation, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	c, ok := r.e.contracts[addr]
	if !ok || c.DeploymentBlock > atHeight {
		return nil, errkind.New(errkind.NotFound, "storage: no contract at that address as of height")
	}
	return r.decodeLocked(c)
}

// GetByTweakedPubKey resolves a contract by its Taproot-style tweaked
// public key, the form a P2TR scriptPubKey actually carries on-chain.
func (r ContractRepo) GetByTweakedPubKey(tweaked []byte) (*types.ContractInformation, error) {
	r.e.mu.RLock()
	defer r.e.mu.RUnlock()
	addr, ok := r.e.contractsByKey[fmt.Sprintf("%x", tweaked)]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no contract with that tweaked key")
	}
	c, ok := r.e.contracts[addr]
	if !ok {
		return nil, errkind.New(errkind.NotFound, "storage: no contract with that tweaked key")
	}
	return r.decodeLocked(c)
}

func (r ContractRepo) decodeLocked(c *types.ContractInformation) (*types.ContractInformation, error) {
	if !r.e.cfg.CompressCode {
		return c, nil
	}
	code, err := decompressBytecode(c.Bytecode)
	if err != nil {
		return nil, errkind.Wrap(errkind.Storage, err, "storage: decompress bytecode")
	}
	out := *c
	out.Bytecode = code
	return &out, nil
}

// Insert persists newly deployed contract metadata, rejecting an address
// collision (§4.3 "Deployment" duplicate check happens in the evaluator;
// this is the storage-level guard against a concurrent racing deploy).
func (r ContractRepo) Insert(c *types.ContractInformation) error {
	stored := *c
	if r.e.cfg.CompressCode {
		compressed, err := compressBytecode(c.Bytecode)
		if err != nil {
			return errkind.Wrap(errkind.Storage, err, "storage: compress bytecode")
		}
		stored.Bytecode = compressed
	}

	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if _, exists := r.e.contracts[c.Address]; exists {
		return errkind.New(errkind.AlreadyExists, "storage: contract already deployed at "+string(c.Address))
	}
	rec := walRecord{Contracts: []*types.ContractInformation{&stored}}
	return r.e.commitLocked(&rec)
}

// DeleteFrom rolls back contracts deployed at or above height (reorg).
func (r ContractRepo) DeleteFrom(height uint64) error {
	b := r.e.NewBatch()
	b.DeleteFrom(height)
	return r.e.Commit(b)
}

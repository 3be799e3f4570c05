package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ContractInformation is the persisted identity of a deployed contract.
// Created at deployment, never mutated, removed only by a reorg.
type ContractInformation struct {
	Address           ContractAddress
	TweakedPublicKey  []byte // 32 or 33 bytes
	DeploymentBlock   uint64
	Bytecode          []byte // optionally compressed, see internal/storage
	DeployerPublicKey []byte
	SaltHash          Hash
	Seed              []byte
}

// DeriveContractAddress derives a contract's canonical address deterministically
// from (deployer public key, salt hash, seed), following the Taproot-style
// public-key-tweak construction named in the GLOSSARY: the deployer's
// compressed secp256k1 public key is tweaked by a scalar derived from the
// salt hash and seed, and the resulting point's x-only coordinate is the
// tweaked public key. The address string is a hex encoding of that
// x-only key with a fixed "op1" prefix, reproducible from the same three
// inputs (invariant 5, §3) and rejecting duplicate derivations is the
// caller's responsibility (the contract repository enforces uniqueness).
func DeriveContractAddress(deployerPubKey []byte, saltHash Hash, seed []byte) (ContractAddress, []byte, error) {
	pub, err := btcec.ParsePubKey(deployerPubKey)
	if err != nil {
		return "", nil, fmt.Errorf("parse deployer public key: %w", err)
	}

	tweakInput := sha256.New()
	tweakInput.Write(deployerPubKey)
	tweakInput.Write(saltHash[:])
	tweakInput.Write(seed)
	tweakDigest := tweakInput.Sum(nil)

	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweakDigest)

	var basePoint, tweakPoint, result btcec.JacobianPoint
	pub.AsJacobian(&basePoint)
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)
	btcec.AddNonConst(&basePoint, &tweakPoint, &result)
	result.ToAffine()

	var xBytes [32]byte
	result.X.PutBytesUnchecked(xBytes[:])

	tweaked := make([]byte, 32)
	copy(tweaked, xBytes[:])

	addr := ContractAddress("op1" + hex.EncodeToString(tweaked))
	return addr, tweaked, nil
}

// Package types defines the data model shared by every core component:
// blocks, transactions, contracts, unspent outputs, state slots and epochs.
// Addresses are kept as distinct string-typed aliases (base-chain Address vs.
// ContractAddress) because they live in different encoding spaces: one is a
// script-derived Bitcoin-family address, the other a Taproot-tweaked key
// commitment (see GLOSSARY).
package types

import (
	"encoding/hex"
	"strings"
)

// Hash is a 32-byte digest: block hash, transaction hash, checksum, etc.
type Hash [32]byte

// Hex returns the lowercase hex encoding of h, without a 0x prefix.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return "0x" + h.Hex() }

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool { return h == Hash{} }

// HashFromHex parses a 64-character hex string (with or without 0x prefix)
// into a Hash. Mirrors the checksum-query normalisation in §6: lowercases
// and strips a leading 0x.
func HashFromHex(s string) (Hash, bool) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 64 {
		return Hash{}, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, false
	}
	var h Hash
	copy(h[:], b)
	return h, true
}

// Pointer is a 32-byte state-slot pointer within a contract's storage space.
type Pointer [32]byte

// StateValue is the 32-byte value stored at a state slot.
type StateValue [32]byte

// Address is a canonical base-chain address string (P2PKH, P2WPKH,
// P2SH-P2WPKH, P2TR or P2OP encoding).
type Address string

// ContractAddress is the canonical identifier of a deployed contract,
// derived from (deployer public key, salt hash, seed) — see
// DeriveContractAddress in contract.go.
type ContractAddress string

// AddressKind enumerates the base-chain address encodings named in §6.
type AddressKind string

const (
	P2PKH       AddressKind = "P2PKH"
	P2WPKH      AddressKind = "P2WPKH"
	P2SHP2WPKH  AddressKind = "P2SH-P2WPKH"
	P2TR        AddressKind = "P2TR"
	P2OP        AddressKind = "P2OP"
)

package main

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/opnet-core/indexer/internal/types"
)

func buildEnvelopeScript(chunks ...[]byte) []byte {
	script := []byte{opFalse, opIf}
	for _, c := range chunks {
		if len(c) > 0x4b {
			panic("test chunk too large for direct push")
		}
		script = append(script, byte(len(c)))
		script = append(script, c...)
	}
	script = append(script, opEndIf)
	return script
}

func uint64LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func TestDecodeEnvelopeInteraction(t *testing.T) {
	script := buildEnvelopeScript(
		envelopeTag,
		[]byte{envelopeKindInteraction},
		[]byte("contract-xyz"),
		[]byte{0xDE, 0xAD, 0xBE, 0xEF},
		uint64LE(50_000),
	)
	witness := []string{hex.EncodeToString(script)}

	payload, txType, ok := decodeEnvelope(witness)
	if !ok {
		t.Fatalf("decodeEnvelope: expected envelope to decode")
	}
	if txType != types.TxInteraction {
		t.Errorf("txType = %v, want TxInteraction", txType)
	}
	if payload.Contract != "contract-xyz" {
		t.Errorf("contract = %q", payload.Contract)
	}
	if payload.GasLimit != 50_000 {
		t.Errorf("gas limit = %d, want 50000", payload.GasLimit)
	}
}

func TestDecodeEnvelopeDeployment(t *testing.T) {
	var saltHash [32]byte
	saltHash[0] = 0x42
	script := buildEnvelopeScript(
		envelopeTag,
		[]byte{envelopeKindDeployment},
		[]byte{0x01, 0x02, 0x03}, // bytecode
		[]byte("deployer-pubkey"),
		[]byte("seed"),
		saltHash[:],
	)
	witness := []string{hex.EncodeToString(script)}

	payload, txType, ok := decodeEnvelope(witness)
	if !ok {
		t.Fatalf("decodeEnvelope: expected envelope to decode")
	}
	if txType != types.TxDeployment {
		t.Errorf("txType = %v, want TxDeployment", txType)
	}
	if string(payload.DeployBytecode) != "\x01\x02\x03" {
		t.Errorf("bytecode = %x", payload.DeployBytecode)
	}
	if payload.SaltHash[0] != 0x42 {
		t.Errorf("salt hash not decoded")
	}
}

func TestDecodeEnvelopeIgnoresOrdinaryWitness(t *testing.T) {
	witness := []string{"51", hex.EncodeToString([]byte("not an envelope at all"))}
	if _, _, ok := decodeEnvelope(witness); ok {
		t.Fatalf("decodeEnvelope: expected no envelope in ordinary witness data")
	}
}

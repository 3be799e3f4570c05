package main

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/opnet-core/indexer/internal/types"
)

// envelopeTag marks a taproot witness script as carrying a second-layer
// interaction payload rather than being an ordinary spending script. Chosen
// the way ordinal/inscription envelopes are: an OP_FALSE OP_IF ... OP_ENDIF
// block of push-only data, first push equal to this tag.
var envelopeTag = []byte("op")

const (
	envelopeKindDeployment  byte = 0x01
	envelopeKindInteraction byte = 0x02
)

// Minimal script opcodes this parser needs to recognize; everything else in
// a witness script is the key-spend/script-path machinery the indexer does
// not need to evaluate.
const (
	opFalse     = 0x00
	opIf        = 0x63
	opEndIf     = 0x68
	opPushData1 = 0x4c
	opPushData2 = 0x4d
)

// decodeEnvelope scans a taproot input's witness stack for an envelope
// carrying a deployment or interaction payload, returning nil if none of the
// witness items decode as one. Real second-layer protocols place the
// envelope in the witness script (the second-to-last witness item, ahead of
// the control block); this walks every item so a differently-shaped
// reveal transaction still decodes.
func decodeEnvelope(witness []string) (*types.InteractionPayload, types.TxType, bool) {
	for _, item := range witness {
		script, err := hex.DecodeString(item)
		if err != nil {
			continue
		}
		if payload, txType, ok := decodeEnvelopeScript(script); ok {
			return payload, txType, true
		}
	}
	return nil, types.TxGeneric, false
}

func decodeEnvelopeScript(script []byte) (*types.InteractionPayload, types.TxType, bool) {
	chunks, ok := pushesInsideEnvelope(script)
	if !ok || len(chunks) < 2 {
		return nil, types.TxGeneric, false
	}
	if string(chunks[0]) != string(envelopeTag) {
		return nil, types.TxGeneric, false
	}
	if len(chunks[1]) != 1 {
		return nil, types.TxGeneric, false
	}

	switch chunks[1][0] {
	case envelopeKindInteraction:
		if len(chunks) < 4 {
			return nil, types.TxGeneric, false
		}
		payload := &types.InteractionPayload{
			Contract: types.ContractAddress(chunks[2]),
			Calldata: chunks[3],
		}
		if len(chunks) > 4 {
			payload.GasLimit = decodeUint64(chunks[4])
		}
		if len(chunks) > 5 {
			payload.PriorityFeeSat = decodeUint64(chunks[5])
		}
		return payload, types.TxInteraction, true

	case envelopeKindDeployment:
		if len(chunks) < 5 {
			return nil, types.TxGeneric, false
		}
		payload := &types.InteractionPayload{
			DeployBytecode: chunks[2],
			DeployerPubKey: chunks[3],
			Seed:           chunks[4],
		}
		if len(chunks) > 5 {
			copy(payload.SaltHash[:], chunks[5])
		}
		if len(chunks) > 6 {
			payload.GasLimit = decodeUint64(chunks[6])
		}
		return payload, types.TxDeployment, true
	}
	return nil, types.TxGeneric, false
}

// pushesInsideEnvelope walks script looking for OP_FALSE OP_IF, collects
// every subsequent pushed data chunk, and stops (successfully) at the
// matching OP_ENDIF. Any non-push opcode inside the envelope, or a missing
// OP_ENDIF, is treated as "not an envelope" rather than an error: witness
// scripts the indexer doesn't understand are simply not second-layer
// transactions.
func pushesInsideEnvelope(script []byte) ([][]byte, bool) {
	i := 0
	for i < len(script)-1 {
		if script[i] == opFalse && script[i+1] == opIf {
			break
		}
		i++
	}
	if i >= len(script)-1 {
		return nil, false
	}
	i += 2

	var chunks [][]byte
	for i < len(script) {
		op := script[i]
		switch {
		case op == opEndIf:
			return chunks, true
		case op == 0:
			i++
		case op >= 1 && op <= 0x4b:
			n := int(op)
			i++
			if i+n > len(script) {
				return nil, false
			}
			chunks = append(chunks, script[i:i+n])
			i += n
		case op == opPushData1:
			if i+1 >= len(script) {
				return nil, false
			}
			n := int(script[i+1])
			i += 2
			if i+n > len(script) {
				return nil, false
			}
			chunks = append(chunks, script[i:i+n])
			i += n
		case op == opPushData2:
			if i+2 >= len(script) {
				return nil, false
			}
			n := int(binary.LittleEndian.Uint16(script[i+1 : i+3]))
			i += 3
			if i+n > len(script) {
				return nil, false
			}
			chunks = append(chunks, script[i:i+n])
			i += n
		default:
			return nil, false
		}
	}
	return nil, false
}

func decodeUint64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

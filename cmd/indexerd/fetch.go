package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/opnet-core/indexer/internal/rpcclient"
	"github.com/opnet-core/indexer/internal/types"
)

// rawBlock mirrors the subset of Bitcoin Core's getblock verbosity=2 result
// this indexer consumes: header fields plus full transaction detail.
type rawBlock struct {
	Hash              string  `json:"hash"`
	PreviousBlockHash string  `json:"previousblockhash"`
	Height            uint64  `json:"height"`
	Time              int64   `json:"time"`
	Tx                []rawTx `json:"tx"`
}

type rawTx struct {
	Txid string    `json:"txid"`
	Vin  []rawVin  `json:"vin"`
	Vout []rawVout `json:"vout"`
}

type rawVin struct {
	Txid     string   `json:"txid"`
	Vout     uint32   `json:"vout"`
	Coinbase string   `json:"coinbase"`
	Witness  []string `json:"txinwitness"`
}

type rawVout struct {
	Value        float64 `json:"value"`
	N            uint32  `json:"n"`
	ScriptPubKey struct {
		Address string `json:"address"`
		Hex     string `json:"hex"`
	} `json:"scriptPubKey"`
}

// fetchBlock adapts an rpcclient.Client into an indexing.BlockFetcher: it
// resolves height to a hash, fetches full transaction detail, and maps the
// base-chain wire shape into the internal Block/Transaction types. Second
// layer interaction and deployment payloads are recovered from each input's
// witness envelope (see envelope.go); a transaction whose witnesses decode
// to no envelope surfaces as TxGeneric/TxCoinbase with Interaction left nil.
func fetchBlock(rpc *rpcclient.Client) func(ctx context.Context, height uint64) (*types.Block, error) {
	return func(ctx context.Context, height uint64) (*types.Block, error) {
		hashHex, err := rpc.GetBlockHash(ctx, height)
		if err != nil {
			return nil, fmt.Errorf("resolve hash for height %d: %w", height, err)
		}
		var raw rawBlock
		if err := rpc.GetBlock(ctx, hashHex, rpcclient.VerbosityDecodedWithTxDetail, &raw); err != nil {
			return nil, fmt.Errorf("fetch block %s: %w", hashHex, err)
		}

		hash, ok := types.HashFromHex(raw.Hash)
		if !ok {
			return nil, fmt.Errorf("fetch block: malformed hash %q", raw.Hash)
		}
		prevHash, _ := types.HashFromHex(raw.PreviousBlockHash)

		block := &types.Block{
			Header: types.BlockHeader{
				Height:             height,
				Hash:               hash,
				PreviousHash:       prevHash,
				TimestampUnixMilli: raw.Time * 1000,
			},
		}
		for _, tx := range raw.Tx {
			block.Transactions = append(block.Transactions, convertTx(tx, height))
		}
		return block, nil
	}
}

func convertTx(raw rawTx, height uint64) *types.Transaction {
	txType := types.TxGeneric
	var interaction *types.InteractionPayload
	var inputs []types.TxInput
	for _, vin := range raw.Vin {
		if vin.Coinbase != "" {
			txType = types.TxCoinbase
			continue
		}
		originalTxID, _ := types.HashFromHex(vin.Txid)
		inputs = append(inputs, types.TxInput{OriginalTxID: originalTxID, OutputIndex: vin.Vout})

		if interaction == nil && len(vin.Witness) > 0 {
			if payload, decodedType, ok := decodeEnvelope(vin.Witness); ok {
				interaction = payload
				txType = decodedType
			}
		}
	}

	var outputs []types.TxOutput
	for _, vout := range raw.Vout {
		scriptBytes, _ := hex.DecodeString(vout.ScriptPubKey.Hex)
		outputs = append(outputs, types.TxOutput{
			Address:    types.Address(vout.ScriptPubKey.Address),
			Value:      uint64(vout.Value * 1e8),
			PubKeyHash: scriptBytes,
		})
	}

	txHash, _ := types.HashFromHex(raw.Txid)
	return &types.Transaction{
		ID:           txHash,
		Hash:         txHash,
		Type:         txType,
		Inputs:       inputs,
		Outputs:      outputs,
		Interaction:  interaction,
		BlockHeight:  height,
		IndexingHash: txHash,
	}
}

package node

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
	"github.com/goodnatureofminers/blockindex7000-backend/pkg/safe"
)

// convertBlock maps a verbose RPC block to the domain model. Output values
// come back as BTC floats and are converted to satoshis here.
func convertBlock(src *btcjson.GetBlockVerboseTxResult) (*model.Block, error) {
	id, err := chainhash.NewHashFromStr(src.Hash)
	if err != nil {
		return nil, fmt.Errorf("parse block hash %q: %w", src.Hash, err)
	}
	block := model.Block{ID: *id}

	// The genesis block has no previous hash.
	if src.PreviousHash != "" {
		prev, err := chainhash.NewHashFromStr(src.PreviousHash)
		if err != nil {
			return nil, fmt.Errorf("parse previous hash %q: %w", src.PreviousHash, err)
		}
		block.PrevID = *prev
	}

	block.Height, err = safe.Uint32(src.Height)
	if err != nil {
		return nil, fmt.Errorf("block %s height overflow: %w", id, err)
	}
	block.Size, err = safe.Uint32(src.Size)
	if err != nil {
		return nil, fmt.Errorf("block %s size overflow: %w", id, err)
	}

	block.Txs = make([]model.Transaction, 0, len(src.Tx))
	for _, tx := range src.Tx {
		converted, err := convertTransaction(tx)
		if err != nil {
			return nil, err
		}
		block.Txs = append(block.Txs, converted)
	}
	return &block, nil
}

func convertTransaction(src btcjson.TxRawResult) (model.Transaction, error) {
	txid, err := chainhash.NewHashFromStr(src.Txid)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parse txid %q: %w", src.Txid, err)
	}
	raw, err := hex.DecodeString(src.Hex)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("decode tx %s hex: %w", txid, err)
	}

	tx := model.Transaction{
		TxID:  *txid,
		Raw:   raw,
		VSize: int64(src.Vsize),
		Ins:   make([]model.TxIn, 0, len(src.Vin)),
		Outs:  make([]model.TxOut, 0, len(src.Vout)),
	}

	for _, vin := range src.Vin {
		if vin.IsCoinBase() {
			tx.Ins = append(tx.Ins, model.TxIn{IsCoinbase: true})
			continue
		}
		prevTxID, err := chainhash.NewHashFromStr(vin.Txid)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parse prev txid %q of tx %s: %w", vin.Txid, txid, err)
		}
		tx.Ins = append(tx.Ins, model.TxIn{
			PrevTxID: *prevTxID,
			PrevVout: vin.Vout,
		})
	}

	for _, vout := range src.Vout {
		amount, err := btcutil.NewAmount(vout.Value)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("convert value of tx %s vout %d: %w", txid, vout.N, err)
		}
		pkScript, err := hex.DecodeString(vout.ScriptPubKey.Hex)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("decode script of tx %s vout %d: %w", txid, vout.N, err)
		}
		tx.Outs = append(tx.Outs, model.TxOut{
			Vout:       vout.N,
			Value:      int64(amount),
			ScriptID:   model.NewScriptID(pkScript),
			ScriptType: txscript.GetScriptClass(pkScript).String(),
		})
	}
	return tx, nil
}

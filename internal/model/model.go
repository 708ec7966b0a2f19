// Package model defines domain models shared by the indexing engine and its collaborators.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ScriptID identifies the locking script of an output. All outputs payable to
// the same address/script share one ScriptID.
type ScriptID [sha256.Size]byte

// NewScriptID derives the identifier for a locking script.
func NewScriptID(pkScript []byte) ScriptID {
	return sha256.Sum256(pkScript)
}

// ScriptIDFromString parses a hex-encoded ScriptID.
func ScriptIDFromString(s string) (ScriptID, error) {
	var id ScriptID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse script id: %w", err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("script id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func (id ScriptID) String() string {
	return hex.EncodeToString(id[:])
}

// Outpoint references a transaction output.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

// TxIn is one transaction input.
type TxIn struct {
	IsCoinbase bool
	PrevTxID   chainhash.Hash
	PrevVout   uint32
}

// TxOut is one transaction output.
type TxOut struct {
	Vout       uint32
	Value      int64
	ScriptID   ScriptID
	ScriptType string
}

// Transaction is a fully materialized transaction as fetched from the node.
type Transaction struct {
	TxID  chainhash.Hash
	Raw   []byte
	VSize int64
	Ins   []TxIn
	Outs  []TxOut
}

// Block is a full block as fetched from the node. Blocks are identified by
// their content hash and never mutated locally.
type Block struct {
	ID     chainhash.Hash
	PrevID chainhash.Hash
	Height uint32
	Size   uint32
	Txs    []Transaction
}

// ChainTip is the last block committed to the indices.
type ChainTip struct {
	BlockID chainhash.Hash
	Height  uint32
}

// Spend records which input consumed a given output.
type Spend struct {
	TxID chainhash.Hash
	Vin  uint32
}

// Txo is one indexed output of a script, as returned by script range queries.
type Txo struct {
	TxID     chainhash.Hash
	Vout     uint32
	ScriptID ScriptID
	Height   uint32
}

// FeeQuartiles summarizes the fee-rate distribution of one block.
type FeeQuartiles struct {
	Q1     int64
	Median int64
	Q3     int64
}

// FeeEntry is the per-height fee record stored in the fee index.
type FeeEntry struct {
	Height    uint32
	Quartiles FeeQuartiles
	BlockSize uint32
}

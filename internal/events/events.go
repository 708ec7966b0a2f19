// Package events carries the fire-and-forget notifications emitted after
// index mutations commit.
package events

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

// Event is one notification. Delivery is best effort and never ordered
// against commit visibility; consumers must not use events for correctness.
type Event interface {
	Name() string
}

// TransactionEvent announces a newly indexed transaction.
type TransactionEvent struct {
	TxID    chainhash.Hash
	Raw     []byte
	BlockID chainhash.Hash
}

func (TransactionEvent) Name() string { return "transaction" }

// SpentEvent announces that an output was consumed by an input.
type SpentEvent struct {
	Outpoint    string // "txid:vout" of the spent output
	SpenderTxID chainhash.Hash
}

func (SpentEvent) Name() string { return "spent" }

// ScriptEvent announces new activity on a script.
type ScriptEvent struct {
	ScriptID model.ScriptID
	TxID     chainhash.Hash
	Raw      []byte
}

func (ScriptEvent) Name() string { return "script" }

// BlockEvent announces a newly connected block, carrying its raw header.
type BlockEvent struct {
	BlockID chainhash.Hash
	Header  []byte
}

func (BlockEvent) Name() string { return "block" }

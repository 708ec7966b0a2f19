package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/kv"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
	"github.com/goodnatureofminers/blockindex7000-backend/pkg/workerpool"
)

const defaultLookupWorkers = 16

// Tip returns the last committed chain tip, or nil when the index has never
// been initialized.
func (e *Engine) Tip() (*model.ChainTip, error) {
	raw, err := e.store.Get(tipKey())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tip: %w", err)
	}
	tip, err := decodeTip(raw)
	if err != nil {
		return nil, err
	}
	return &tip, nil
}

// BlockIDByTransactionID resolves the block containing a transaction by
// looking up its indexed height and asking the node which block currently
// occupies that height. After a reorg the answer may differ from the block
// that originally contained the transaction; callers must not treat it as
// historically authoritative. Returns nil when the transaction is unknown.
func (e *Engine) BlockIDByTransactionID(ctx context.Context, txid *chainhash.Hash) (*chainhash.Hash, error) {
	raw, err := e.store.Get(txKey(*txid))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tx %s: %w", txid, err)
	}
	height, err := decodeHeight(raw)
	if err != nil {
		return nil, err
	}
	blockID, err := e.node.BlockHashAtHeight(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("resolve block at height %d: %w", height, err)
	}
	return blockID, nil
}

// Fees returns the fee entries for the most recent count heights, ascending.
func (e *Engine) Fees(count uint32) ([]model.FeeEntry, error) {
	tip, err := e.Tip()
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, nil
	}

	var start uint32
	if tip.Height > count {
		start = tip.Height - count
	}

	var entries []model.FeeEntry
	var decodeErr error
	err = e.store.Scan(kv.ScanOptions{
		Prefix: []byte{prefixFee},
		Start:  feeKey(start),
	}, func(key, value []byte) bool {
		height, err := decodeFeeKey(key)
		if err != nil {
			decodeErr = err
			return false
		}
		entry, err := decodeFeeEntry(height, value)
		if err != nil {
			decodeErr = err
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan fee index: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}

// SeenScriptID reports whether any connected block created an output for the
// script.
func (e *Engine) SeenScriptID(scriptID model.ScriptID) (bool, error) {
	seen := false
	err := e.store.Scan(kv.ScanOptions{
		Prefix: scriptPrefix(scriptID),
		Limit:  1,
	}, func(key, value []byte) bool {
		seen = true
		return false
	})
	if err != nil {
		return false, fmt.Errorf("scan script index: %w", err)
	}
	return seen, nil
}

// SpentFromTxo returns the spend record for an output, or nil when the output
// is unspent or its spending block is not connected.
func (e *Engine) SpentFromTxo(op model.Outpoint) (*model.Spend, error) {
	raw, err := e.store.Get(spentKey(op))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spend of %s: %w", op, err)
	}
	spend, err := decodeSpend(raw)
	if err != nil {
		return nil, err
	}
	return &spend, nil
}

// TxoByOutpoint returns the cached value of an output. The record survives
// spending and is only removed when the creating block is disconnected.
func (e *Engine) TxoByOutpoint(op model.Outpoint) (int64, bool, error) {
	raw, err := e.store.Get(txoKey(op))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read txo %s: %w", op, err)
	}
	value, err := decodeTxoValue(raw)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// TxosByScriptID returns every output of the script created at minHeight or
// later by a connected block, keyed "txid:vout".
func (e *Engine) TxosByScriptID(scriptID model.ScriptID, minHeight uint32) (map[string]model.Txo, error) {
	txos := make(map[string]model.Txo)
	var decodeErr error
	err := e.store.Scan(kv.ScanOptions{
		Prefix: scriptPrefix(scriptID),
		Start:  scriptStart(scriptID, minHeight),
	}, func(key, value []byte) bool {
		txo, err := decodeScriptKey(key)
		if err != nil {
			decodeErr = err
			return false
		}
		txos[model.Outpoint{TxID: txo.TxID, Vout: txo.Vout}.String()] = txo
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan script index: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return txos, nil
}

// TransactionIDsByScriptID returns the union of creating and spending
// transaction ids for every output of the script at minHeight or later.
// Spend lookups fan out concurrently with fail-fast semantics.
func (e *Engine) TransactionIDsByScriptID(ctx context.Context, scriptID model.ScriptID, minHeight uint32) ([]chainhash.Hash, error) {
	txos, err := e.TxosByScriptID(scriptID, minHeight)
	if err != nil {
		return nil, err
	}

	items := make([]model.Txo, 0, len(txos))
	for _, txo := range txos {
		items = append(items, txo)
	}

	var mu sync.Mutex
	set := make(map[chainhash.Hash]struct{}, len(items))

	err = workerpool.Process(ctx, defaultLookupWorkers, items, func(ctx context.Context, txo model.Txo) error {
		spend, err := e.SpentFromTxo(model.Outpoint{TxID: txo.TxID, Vout: txo.Vout})
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		set[txo.TxID] = struct{}{}
		if spend != nil {
			set[spend.TxID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	txids := make([]chainhash.Hash, 0, len(set))
	for txid := range set {
		txids = append(txids, txid)
	}
	sort.Slice(txids, func(i, j int) bool {
		return bytes.Compare(txids[i][:], txids[j][:]) < 0
	})
	return txids, nil
}

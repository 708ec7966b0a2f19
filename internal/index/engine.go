package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/events"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/kv"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

const defaultFeeWorkers = 8

// Engine maintains the secondary indices. Connect and Disconnect are the only
// mutations; the caller must never run two of them concurrently. Queries are
// safe to run at any time.
type Engine struct {
	store      kv.Store
	node       NodeClient
	publisher  Publisher
	metrics    EngineMetrics
	logger     *zap.Logger
	feeWorkers int
}

// NewEngine builds an Engine with its collaborators.
func NewEngine(store kv.Store, node NodeClient, publisher Publisher, metrics EngineMetrics, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if node == nil {
		return nil, errors.New("node client is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if metrics == nil {
		return nil, errors.New("engine metrics is required")
	}
	return &Engine{
		store:      store,
		node:       node,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		feeWorkers: defaultFeeWorkers,
	}, nil
}

// Connect applies one block to every index. The first phase writes the raw
// indices and the new tip in a single atomic batch; the second phase derives
// fee statistics and commits them independently. A second-phase failure
// leaves the block indexed without fee statistics until Connect is retried,
// which is safe because every write is an overwrite.
func (e *Engine) Connect(ctx context.Context, blockID *chainhash.Hash, height uint32) (err error) {
	started := time.Now()
	defer func() {
		e.metrics.Observe("connect", err, started)
	}()

	block, err := e.node.BlockByHash(ctx, blockID)
	if err != nil {
		return fmt.Errorf("fetch block %s: %w", blockID, err)
	}

	batch := e.store.NewBatch()
	queued := make([]events.Event, 0, len(block.Txs)*2)

	for _, tx := range block.Txs {
		for vin, in := range tx.Ins {
			if in.IsCoinbase {
				continue
			}
			prev := model.Outpoint{TxID: in.PrevTxID, Vout: in.PrevVout}
			batch.Put(spentKey(prev), encodeSpend(model.Spend{TxID: tx.TxID, Vin: uint32(vin)}))
			queued = append(queued, events.SpentEvent{Outpoint: prev.String(), SpenderTxID: tx.TxID})
		}
		for _, out := range tx.Outs {
			batch.Put(scriptKey(out.ScriptID, height, tx.TxID, out.Vout), nil)
			batch.Put(txoKey(model.Outpoint{TxID: tx.TxID, Vout: out.Vout}), encodeTxoValue(out.Value))
			queued = append(queued, events.ScriptEvent{ScriptID: out.ScriptID, TxID: tx.TxID, Raw: tx.Raw})
		}
		batch.Put(txKey(tx.TxID), encodeHeight(height))
		queued = append(queued, events.TransactionEvent{TxID: tx.TxID, Raw: tx.Raw, BlockID: block.ID})
	}
	batch.Put(tipKey(), encodeTip(model.ChainTip{BlockID: *blockID, Height: height}))

	if err = batch.Commit(); err != nil {
		return fmt.Errorf("commit block %s at height %d: %w", blockID, height, err)
	}

	for _, event := range queued {
		e.publisher.Publish(event)
	}
	e.publishBlockEvent(ctx, blockID)

	if err = e.deriveFees(ctx, block, height); err != nil {
		return fmt.Errorf("derive fees for block %s: %w", blockID, err)
	}

	e.logger.Info("connected block",
		zap.Stringer("block", blockID),
		zap.Uint32("height", height),
		zap.Int("txs", len(block.Txs)),
	)
	return nil
}

// Disconnect reverses one block, removing every index entry it introduced and
// moving the tip back to its parent in the same atomic batch. Fee statistics
// for the height are kept; a later reconnect overwrites them.
func (e *Engine) Disconnect(ctx context.Context, blockID *chainhash.Hash) (err error) {
	started := time.Now()
	defer func() {
		e.metrics.Observe("disconnect", err, started)
	}()

	block, err := e.node.BlockByHash(ctx, blockID)
	if err != nil {
		return fmt.Errorf("fetch block %s: %w", blockID, err)
	}
	if block.Height == 0 {
		return fmt.Errorf("cannot disconnect block %s at height 0", blockID)
	}

	batch := e.store.NewBatch()
	for _, tx := range block.Txs {
		for _, in := range tx.Ins {
			if in.IsCoinbase {
				continue
			}
			batch.Delete(spentKey(model.Outpoint{TxID: in.PrevTxID, Vout: in.PrevVout}))
		}
		for _, out := range tx.Outs {
			batch.Delete(scriptKey(out.ScriptID, block.Height, tx.TxID, out.Vout))
			batch.Delete(txoKey(model.Outpoint{TxID: tx.TxID, Vout: out.Vout}))
		}
		batch.Delete(txKey(tx.TxID))
	}
	batch.Put(tipKey(), encodeTip(model.ChainTip{BlockID: block.PrevID, Height: block.Height - 1}))

	if err = batch.Commit(); err != nil {
		return fmt.Errorf("commit disconnect of block %s: %w", blockID, err)
	}

	e.logger.Info("disconnected block",
		zap.Stringer("block", blockID),
		zap.Uint32("height", block.Height),
	)
	return nil
}

// publishBlockEvent fetches the raw header and emits the block notification.
// A fetch failure drops the notification only; it never fails the connect.
func (e *Engine) publishBlockEvent(ctx context.Context, blockID *chainhash.Hash) {
	header, err := e.node.RawHeader(ctx, blockID)
	if err != nil {
		e.logger.Debug("skip block notification, header fetch failed",
			zap.Stringer("block", blockID),
			zap.Error(err),
		)
		return
	}
	e.publisher.Publish(events.BlockEvent{BlockID: *blockID, Header: header})
}

package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/kv"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
	"github.com/goodnatureofminers/blockindex7000-backend/pkg/workerpool"
)

// deriveFees is the second phase of Connect. Fee rates are computed in
// parallel across transactions and, within a transaction, across inputs;
// the first failure aborts the whole derivation. The resulting summary is
// committed in its own batch, independent of the first phase.
func (e *Engine) deriveFees(ctx context.Context, block *model.Block, height uint32) (err error) {
	started := time.Now()
	defer func() {
		e.metrics.Observe("derive_fees", err, started)
	}()

	rates := make([]int64, len(block.Txs))
	indexes := make([]int, len(block.Txs))
	for i := range indexes {
		indexes[i] = i
	}

	err = workerpool.Process(ctx, e.feeWorkers, indexes, func(ctx context.Context, i int) error {
		rate, err := e.feeRate(ctx, &block.Txs[i])
		if err != nil {
			return err
		}
		rates[i] = rate
		return nil
	})
	if err != nil {
		return err
	}

	slices.Sort(rates)
	entry := model.FeeEntry{
		Height:    height,
		Quartiles: quartiles(rates),
		BlockSize: block.Size,
	}

	batch := e.store.NewBatch()
	batch.Put(feeKey(height), encodeFeeEntry(entry))
	if err = batch.Commit(); err != nil {
		return fmt.Errorf("commit fee entry at height %d: %w", height, err)
	}
	return nil
}

// feeRate computes floor((sum(inputs) - sum(outputs)) / vsize). Coinbase
// transactions contribute zero. A malformed block can yield a negative fee;
// the computed rate is used as-is.
func (e *Engine) feeRate(ctx context.Context, tx *model.Transaction) (int64, error) {
	for _, in := range tx.Ins {
		if in.IsCoinbase {
			return 0, nil
		}
	}

	var inAccum atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for _, in := range tx.Ins {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			prev := model.Outpoint{TxID: in.PrevTxID, Vout: in.PrevVout}
			raw, err := e.store.Get(txoKey(prev))
			if errors.Is(err, kv.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrMissingOutput, prev)
			}
			if err != nil {
				return fmt.Errorf("read txo %s: %w", prev, err)
			}
			value, err := decodeTxoValue(raw)
			if err != nil {
				return err
			}
			inAccum.Add(value)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var outAccum int64
	for _, out := range tx.Outs {
		outAccum += out.Value
	}

	if tx.VSize <= 0 {
		return 0, nil
	}
	return floorDiv(inAccum.Load()-outAccum, tx.VSize), nil
}

// quartiles summarizes a sorted sample by rank selection, not interpolation.
// An empty sample yields all zeroes.
func quartiles(sorted []int64) model.FeeQuartiles {
	n := len(sorted)
	if n == 0 {
		return model.FeeQuartiles{}
	}
	return model.FeeQuartiles{
		Q1:     sorted[n/4],
		Median: sorted[n/2],
		Q3:     sorted[n/2+n/4],
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

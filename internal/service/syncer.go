// Package service contains the sync loop that keeps the indices aligned with
// the remote node's best chain.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/clock"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Chain is the indexing engine as seen by the syncer.
	Chain interface {
		Tip() (*model.ChainTip, error)
		Connect(ctx context.Context, blockID *chainhash.Hash, height uint32) error
		Disconnect(ctx context.Context, blockID *chainhash.Hash) error
	}

	// Node provides the chain-tip view of the remote node.
	Node interface {
		BestHeight(ctx context.Context) (uint32, error)
		BlockHashAtHeight(ctx context.Context, height uint32) (*chainhash.Hash, error)
	}
)

// Syncer serializes all Connect/Disconnect calls: it is the single logical
// writer the engine requires.
type Syncer struct {
	logger      *zap.Logger
	chain       Chain
	node        Node
	rl          ratelimit.Limiter
	sleep       func(context.Context, time.Duration) error
	retryDelay  time.Duration
	idleDelay   time.Duration
	blockSignal <-chan struct{}
}

// NewSyncer builds a Syncer. blockSignal may be nil; when set, a new-block
// signal cuts the idle wait short.
func NewSyncer(chain Chain, node Node, logger *zap.Logger, blockSignal <-chan struct{}) (*Syncer, error) {
	if chain == nil {
		return nil, errors.New("chain is required")
	}
	if node == nil {
		return nil, errors.New("node is required")
	}
	return &Syncer{
		logger:      logger,
		chain:       chain,
		node:        node,
		rl:          ratelimit.New(fetchRPS),
		sleep:       clock.SleepWithContext,
		retryDelay:  retryDelay,
		idleDelay:   idleDelay,
		blockSignal: blockSignal,
	}, nil
}

// Run drives the sync loop until the context is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.syncOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Warn("sync iteration failed, backing off", zap.Error(err), zap.Duration("sleep", s.retryDelay))
			if sleepErr := s.wait(ctx, s.retryDelay); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if err := s.wait(ctx, s.idleDelay); err != nil {
			return err
		}
	}
}

// syncOnce rolls back stale blocks until the local tip is on the node's best
// chain, then connects forward to the node's best height.
func (s *Syncer) syncOnce(ctx context.Context) error {
	bestHeight, err := s.node.BestHeight(ctx)
	if err != nil {
		return fmt.Errorf("fetch best height: %w", err)
	}

	tip, err := s.chain.Tip()
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}

	for tip != nil {
		s.rl.Take()
		current, err := s.node.BlockHashAtHeight(ctx, tip.Height)
		if err != nil {
			return fmt.Errorf("resolve block at height %d: %w", tip.Height, err)
		}
		if current.IsEqual(&tip.BlockID) {
			break
		}

		s.logger.Info("disconnecting stale block",
			zap.Stringer("block", &tip.BlockID),
			zap.Uint32("height", tip.Height),
		)
		if err := s.chain.Disconnect(ctx, &tip.BlockID); err != nil {
			return fmt.Errorf("disconnect block %s: %w", tip.BlockID, err)
		}
		if tip, err = s.chain.Tip(); err != nil {
			return fmt.Errorf("read tip: %w", err)
		}
	}

	var next uint32
	if tip != nil {
		if tip.Height >= bestHeight {
			return nil
		}
		next = tip.Height + 1
	}

	for next <= bestHeight {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.rl.Take()
		blockID, err := s.node.BlockHashAtHeight(ctx, next)
		if err != nil {
			return fmt.Errorf("resolve block at height %d: %w", next, err)
		}
		if err := s.chain.Connect(ctx, blockID, next); err != nil {
			return fmt.Errorf("connect block %s at height %d: %w", blockID, next, err)
		}
		next++
	}
	return nil
}

func (s *Syncer) wait(ctx context.Context, d time.Duration) error {
	if s.blockSignal == nil {
		return s.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.blockSignal:
		return nil
	case <-timer.C:
		return nil
	}
}

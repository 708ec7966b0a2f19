// Package index implements the indexing engine: the block connect/disconnect
// protocol over the ordered key-value store, fee-statistics derivation, and
// the read-only query surface.
package index

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/events"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// NodeClient is the remote blockchain node as seen by the engine.
	NodeClient interface {
		BlockByHash(ctx context.Context, blockID *chainhash.Hash) (*model.Block, error)
		BlockHashAtHeight(ctx context.Context, height uint32) (*chainhash.Hash, error)
		RawHeader(ctx context.Context, blockID *chainhash.Hash) ([]byte, error)
	}

	// Publisher delivers notifications after commits. Implementations must
	// never block and never fail the caller.
	Publisher interface {
		Publish(event events.Event)
	}

	// EngineMetrics records engine operation outcomes.
	EngineMetrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Package node adapts the Bitcoin RPC interface to the block and header
// fetches the indexing engine needs.
package node

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

type (
	// RPCMetrics records metrics for RPC calls.
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Client wraps btc rpcclient with metrics instrumentation and conversion to
// domain models.
type Client struct {
	rpc     *rpcclient.Client
	metrics RPCMetrics
}

// NewClient constructs an instrumented node client.
func NewClient(rpc *rpcclient.Client, metrics RPCMetrics) *Client {
	return &Client{
		rpc:     rpc,
		metrics: metrics,
	}
}

// BestHeight returns the node's current best block height.
func (c *Client) BestHeight(ctx context.Context) (height uint32, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("get_block_count", err, started)
	}()
	if err = ctx.Err(); err != nil {
		return 0, err
	}
	count, err := c.rpc.GetBlockCount()
	if err != nil {
		return 0, err
	}
	if count < 0 || count > math.MaxUint32 {
		return 0, fmt.Errorf("block count %d out of range", count)
	}
	return uint32(count), nil
}

// BlockHashAtHeight returns the hash of the block currently at height on the
// node's best chain.
func (c *Client) BlockHashAtHeight(ctx context.Context, height uint32) (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("get_block_hash", err, started)
	}()
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return c.rpc.GetBlockHash(int64(height))
}

// BlockByHash fetches a full block and converts it to the domain model.
func (c *Client) BlockByHash(ctx context.Context, blockID *chainhash.Hash) (block *model.Block, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("get_block_verbose_tx", err, started)
	}()
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	verbose, err := c.rpc.GetBlockVerboseTx(blockID)
	if err != nil {
		return nil, fmt.Errorf("get block %s: %w", blockID, err)
	}
	return convertBlock(verbose)
}

// RawHeader returns the serialized header of a block.
func (c *Client) RawHeader(ctx context.Context, blockID *chainhash.Hash) (header []byte, err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe("get_block_header", err, started)
	}()
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	hdr, err := c.rpc.GetBlockHeader(blockID)
	if err != nil {
		return nil, fmt.Errorf("get header %s: %w", blockID, err)
	}
	var buf bytes.Buffer
	if err := hdr.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize header %s: %w", blockID, err)
	}
	return buf.Bytes(), nil
}

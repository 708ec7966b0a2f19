package index

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/events"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/kv"
	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, event := range p.events {
		names = append(names, event.Name())
	}
	return names
}

type nopMetrics struct{}

func (nopMetrics) Observe(string, error, time.Time) {}

func newTestEngine(t *testing.T, node NodeClient) (*Engine, kv.Store, *capturePublisher) {
	t.Helper()

	store, err := kv.OpenBadgerInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	publisher := &capturePublisher{}
	engine, err := NewEngine(store, node, publisher, nopMetrics{}, zap.NewNop())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return engine, store, publisher
}

func testHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func testScriptID(b byte) model.ScriptID {
	var id model.ScriptID
	id[0] = b
	return id
}

func coinbaseTx(txid byte, scriptID model.ScriptID, value int64) model.Transaction {
	return model.Transaction{
		TxID:  testHash(txid),
		Raw:   []byte{txid, 0x01},
		VSize: 120,
		Ins:   []model.TxIn{{IsCoinbase: true}},
		Outs: []model.TxOut{{
			Vout:     0,
			Value:    value,
			ScriptID: scriptID,
		}},
	}
}

func spendTx(txid byte, prev model.Outpoint, scriptID model.ScriptID, value int64, vsize int64) model.Transaction {
	return model.Transaction{
		TxID:  testHash(txid),
		Raw:   []byte{txid, 0x02},
		VSize: vsize,
		Ins: []model.TxIn{{
			PrevTxID: prev.TxID,
			PrevVout: prev.Vout,
		}},
		Outs: []model.TxOut{{
			Vout:     0,
			Value:    value,
			ScriptID: scriptID,
		}},
	}
}

package index

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

// Each index gets one prefix byte. Composite key fields follow the prefix in
// declared order, with heights and vouts encoded big-endian so that
// byte-lexicographic key order equals logical order. Every range query in
// queries.go depends on this.
const (
	prefixTip    byte = 0x00 // (singleton) -> blockID ++ height
	prefixTx     byte = 0x01 // txid -> height
	prefixTxo    byte = 0x02 // txid ++ vout -> value
	prefixSpent  byte = 0x03 // prevTxid ++ prevVout -> spenderTxid ++ vin
	prefixScript byte = 0x04 // scriptID ++ height ++ txid ++ vout -> empty
	prefixFee    byte = 0x05 // height -> q1 ++ median ++ q3 ++ blockSize
)

const (
	hashLen      = chainhash.HashSize
	scriptKeyLen = 1 + hashLen + 4 + hashLen + 4
	spentValLen  = hashLen + 4
	feeValLen    = 8 + 8 + 8 + 4
	tipValLen    = hashLen + 4
)

func tipKey() []byte {
	return []byte{prefixTip}
}

func txKey(txid chainhash.Hash) []byte {
	key := make([]byte, 0, 1+hashLen)
	key = append(key, prefixTx)
	return append(key, txid[:]...)
}

func txoKey(op model.Outpoint) []byte {
	key := make([]byte, 0, 1+hashLen+4)
	key = append(key, prefixTxo)
	key = append(key, op.TxID[:]...)
	return binary.BigEndian.AppendUint32(key, op.Vout)
}

func spentKey(op model.Outpoint) []byte {
	key := make([]byte, 0, 1+hashLen+4)
	key = append(key, prefixSpent)
	key = append(key, op.TxID[:]...)
	return binary.BigEndian.AppendUint32(key, op.Vout)
}

func scriptKey(id model.ScriptID, height uint32, txid chainhash.Hash, vout uint32) []byte {
	key := make([]byte, 0, scriptKeyLen)
	key = append(key, prefixScript)
	key = append(key, id[:]...)
	key = binary.BigEndian.AppendUint32(key, height)
	key = append(key, txid[:]...)
	return binary.BigEndian.AppendUint32(key, vout)
}

// scriptPrefix bounds a scan to one script's entries.
func scriptPrefix(id model.ScriptID) []byte {
	prefix := make([]byte, 0, 1+len(id))
	prefix = append(prefix, prefixScript)
	return append(prefix, id[:]...)
}

// scriptStart is the first possible key for a script at minHeight.
func scriptStart(id model.ScriptID, minHeight uint32) []byte {
	start := scriptPrefix(id)
	return binary.BigEndian.AppendUint32(start, minHeight)
}

func decodeScriptKey(key []byte) (model.Txo, error) {
	if len(key) != scriptKeyLen || key[0] != prefixScript {
		return model.Txo{}, fmt.Errorf("malformed script index key of %d bytes", len(key))
	}
	var txo model.Txo
	copy(txo.ScriptID[:], key[1:1+hashLen])
	txo.Height = binary.BigEndian.Uint32(key[1+hashLen:])
	copy(txo.TxID[:], key[1+hashLen+4:])
	txo.Vout = binary.BigEndian.Uint32(key[1+hashLen+4+hashLen:])
	return txo, nil
}

func feeKey(height uint32) []byte {
	key := make([]byte, 0, 5)
	key = append(key, prefixFee)
	return binary.BigEndian.AppendUint32(key, height)
}

func decodeFeeKey(key []byte) (uint32, error) {
	if len(key) != 5 || key[0] != prefixFee {
		return 0, fmt.Errorf("malformed fee index key of %d bytes", len(key))
	}
	return binary.BigEndian.Uint32(key[1:]), nil
}

func encodeTip(tip model.ChainTip) []byte {
	value := make([]byte, 0, tipValLen)
	value = append(value, tip.BlockID[:]...)
	return binary.BigEndian.AppendUint32(value, tip.Height)
}

func decodeTip(value []byte) (model.ChainTip, error) {
	if len(value) != tipValLen {
		return model.ChainTip{}, fmt.Errorf("malformed tip record of %d bytes", len(value))
	}
	var tip model.ChainTip
	copy(tip.BlockID[:], value[:hashLen])
	tip.Height = binary.BigEndian.Uint32(value[hashLen:])
	return tip, nil
}

func encodeHeight(height uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, height)
}

func decodeHeight(value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("malformed height record of %d bytes", len(value))
	}
	return binary.BigEndian.Uint32(value), nil
}

func encodeTxoValue(value int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(value))
}

func decodeTxoValue(value []byte) (int64, error) {
	if len(value) != 8 {
		return 0, fmt.Errorf("malformed txo record of %d bytes", len(value))
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

func encodeSpend(spend model.Spend) []byte {
	value := make([]byte, 0, spentValLen)
	value = append(value, spend.TxID[:]...)
	return binary.BigEndian.AppendUint32(value, spend.Vin)
}

func decodeSpend(value []byte) (model.Spend, error) {
	if len(value) != spentValLen {
		return model.Spend{}, fmt.Errorf("malformed spent record of %d bytes", len(value))
	}
	var spend model.Spend
	copy(spend.TxID[:], value[:hashLen])
	spend.Vin = binary.BigEndian.Uint32(value[hashLen:])
	return spend, nil
}

func encodeFeeEntry(entry model.FeeEntry) []byte {
	value := make([]byte, 0, feeValLen)
	value = binary.BigEndian.AppendUint64(value, uint64(entry.Quartiles.Q1))
	value = binary.BigEndian.AppendUint64(value, uint64(entry.Quartiles.Median))
	value = binary.BigEndian.AppendUint64(value, uint64(entry.Quartiles.Q3))
	return binary.BigEndian.AppendUint32(value, entry.BlockSize)
}

func decodeFeeEntry(height uint32, value []byte) (model.FeeEntry, error) {
	if len(value) != feeValLen {
		return model.FeeEntry{}, fmt.Errorf("malformed fee record of %d bytes", len(value))
	}
	return model.FeeEntry{
		Height: height,
		Quartiles: model.FeeQuartiles{
			Q1:     int64(binary.BigEndian.Uint64(value[:8])),
			Median: int64(binary.BigEndian.Uint64(value[8:16])),
			Q3:     int64(binary.BigEndian.Uint64(value[16:24])),
		},
		BlockSize: binary.BigEndian.Uint32(value[24:]),
	}, nil
}

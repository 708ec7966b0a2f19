// Package transport exposes the query surface over HTTP.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/blockindex7000-backend/internal/model"
)

const defaultFeeCount = 10

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

// QueryService is the read-only side of the indexing engine.
type QueryService interface {
	Tip() (*model.ChainTip, error)
	BlockIDByTransactionID(ctx context.Context, txid *chainhash.Hash) (*chainhash.Hash, error)
	Fees(count uint32) ([]model.FeeEntry, error)
	SeenScriptID(scriptID model.ScriptID) (bool, error)
	SpentFromTxo(op model.Outpoint) (*model.Spend, error)
	TxoByOutpoint(op model.Outpoint) (int64, bool, error)
	TxosByScriptID(scriptID model.ScriptID, minHeight uint32) (map[string]model.Txo, error)
	TransactionIDsByScriptID(ctx context.Context, scriptID model.ScriptID, minHeight uint32) ([]chainhash.Hash, error)
}

// Handler serves the JSON query API.
type Handler struct {
	queries QueryService
	logger  *zap.Logger
}

// NewHandler builds a Handler around the query service.
func NewHandler(queries QueryService, logger *zap.Logger) *Handler {
	return &Handler{
		queries: queries,
		logger:  logger,
	}
}

// Register mounts all query routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/tip", h.tip)
	mux.HandleFunc("GET /v1/fees", h.fees)
	mux.HandleFunc("GET /v1/script/{scriptID}/seen", h.scriptSeen)
	mux.HandleFunc("GET /v1/script/{scriptID}/txos", h.scriptTxos)
	mux.HandleFunc("GET /v1/script/{scriptID}/txids", h.scriptTxIDs)
	mux.HandleFunc("GET /v1/txo/{txid}/{vout}", h.txo)
	mux.HandleFunc("GET /v1/txo/{txid}/{vout}/spender", h.spender)
	mux.HandleFunc("GET /v1/tx/{txid}/block", h.txBlock)
}

type tipResponse struct {
	BlockID string `json:"block_id"`
	Height  uint32 `json:"height"`
}

func (h *Handler) tip(w http.ResponseWriter, r *http.Request) {
	tip, err := h.queries.Tip()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if tip == nil {
		h.notFound(w, "tip not initialized")
		return
	}
	h.respond(w, tipResponse{BlockID: tip.BlockID.String(), Height: tip.Height})
}

type feeQuartilesResponse struct {
	Q1     int64 `json:"q1"`
	Median int64 `json:"median"`
	Q3     int64 `json:"q3"`
}

type feeEntryResponse struct {
	Height    uint32               `json:"height"`
	Quartiles feeQuartilesResponse `json:"fee_quartiles"`
	BlockSize uint32               `json:"block_size"`
}

func (h *Handler) fees(w http.ResponseWriter, r *http.Request) {
	count := uint64(defaultFeeCount)
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.badRequest(w, "invalid count")
			return
		}
		count = parsed
	}

	entries, err := h.queries.Fees(uint32(count))
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	response := make([]feeEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, feeEntryResponse{
			Height: entry.Height,
			Quartiles: feeQuartilesResponse{
				Q1:     entry.Quartiles.Q1,
				Median: entry.Quartiles.Median,
				Q3:     entry.Quartiles.Q3,
			},
			BlockSize: entry.BlockSize,
		})
	}
	h.respond(w, response)
}

func (h *Handler) scriptSeen(w http.ResponseWriter, r *http.Request) {
	scriptID, ok := h.scriptIDFromPath(w, r)
	if !ok {
		return
	}
	seen, err := h.queries.SeenScriptID(scriptID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.respond(w, map[string]bool{"seen": seen})
}

type txoResponse struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	ScriptID string `json:"script_id"`
	Height   uint32 `json:"height"`
}

func (h *Handler) scriptTxos(w http.ResponseWriter, r *http.Request) {
	scriptID, ok := h.scriptIDFromPath(w, r)
	if !ok {
		return
	}
	minHeight, ok := h.minHeightFromQuery(w, r)
	if !ok {
		return
	}

	txos, err := h.queries.TxosByScriptID(scriptID, minHeight)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	response := make(map[string]txoResponse, len(txos))
	for key, txo := range txos {
		response[key] = txoResponse{
			TxID:     txo.TxID.String(),
			Vout:     txo.Vout,
			ScriptID: txo.ScriptID.String(),
			Height:   txo.Height,
		}
	}
	h.respond(w, response)
}

func (h *Handler) scriptTxIDs(w http.ResponseWriter, r *http.Request) {
	scriptID, ok := h.scriptIDFromPath(w, r)
	if !ok {
		return
	}
	minHeight, ok := h.minHeightFromQuery(w, r)
	if !ok {
		return
	}

	txids, err := h.queries.TransactionIDsByScriptID(r.Context(), scriptID, minHeight)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	response := make([]string, 0, len(txids))
	for _, txid := range txids {
		response = append(response, txid.String())
	}
	h.respond(w, response)
}

func (h *Handler) txo(w http.ResponseWriter, r *http.Request) {
	op, ok := h.outpointFromPath(w, r)
	if !ok {
		return
	}
	value, found, err := h.queries.TxoByOutpoint(op)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !found {
		h.notFound(w, "unknown txo")
		return
	}
	h.respond(w, map[string]int64{"value": value})
}

type spendResponse struct {
	TxID string `json:"txid"`
	Vin  uint32 `json:"vin"`
}

func (h *Handler) spender(w http.ResponseWriter, r *http.Request) {
	op, ok := h.outpointFromPath(w, r)
	if !ok {
		return
	}
	spend, err := h.queries.SpentFromTxo(op)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if spend == nil {
		h.notFound(w, "txo unspent")
		return
	}
	h.respond(w, spendResponse{TxID: spend.TxID.String(), Vin: spend.Vin})
}

func (h *Handler) txBlock(w http.ResponseWriter, r *http.Request) {
	txid, err := chainhash.NewHashFromStr(r.PathValue("txid"))
	if err != nil {
		h.badRequest(w, "invalid txid")
		return
	}
	blockID, err := h.queries.BlockIDByTransactionID(r.Context(), txid)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if blockID == nil {
		h.notFound(w, "unknown transaction")
		return
	}
	h.respond(w, map[string]string{"block_id": blockID.String()})
}

func (h *Handler) scriptIDFromPath(w http.ResponseWriter, r *http.Request) (model.ScriptID, bool) {
	scriptID, err := model.ScriptIDFromString(r.PathValue("scriptID"))
	if err != nil {
		h.badRequest(w, "invalid script id")
		return model.ScriptID{}, false
	}
	return scriptID, true
}

func (h *Handler) minHeightFromQuery(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := r.URL.Query().Get("min_height")
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		h.badRequest(w, "invalid min_height")
		return 0, false
	}
	return uint32(parsed), true
}

func (h *Handler) outpointFromPath(w http.ResponseWriter, r *http.Request) (model.Outpoint, bool) {
	txid, err := chainhash.NewHashFromStr(r.PathValue("txid"))
	if err != nil {
		h.badRequest(w, "invalid txid")
		return model.Outpoint{}, false
	}
	vout, err := strconv.ParseUint(r.PathValue("vout"), 10, 32)
	if err != nil {
		h.badRequest(w, "invalid vout")
		return model.Outpoint{}, false
	}
	return model.Outpoint{TxID: *txid, Vout: uint32(vout)}, true
}

func (h *Handler) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write response failed", zap.Error(err))
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	http.Error(w, message, http.StatusBadRequest)
}

func (h *Handler) notFound(w http.ResponseWriter, message string) {
	http.Error(w, message, http.StatusNotFound)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

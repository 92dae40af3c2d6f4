package handlers

import (
	"net/http"

	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

// BridgeHandler exposes the cross-chain operation lifecycle.
type BridgeHandler struct {
	bridge *services.BridgeService
}

func NewBridgeHandler(bridge *services.BridgeService) *BridgeHandler {
	return &BridgeHandler{bridge: bridge}
}

// InitiateBridgeRequest funds a cross-chain transfer from the caller's
// balance.
type InitiateBridgeRequest struct {
	Token       string `json:"token" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	ToChainID   uint64 `json:"to_chain_id" binding:"required"`
	ExecuteData string `json:"execute_data"` // hex, optional
}

// InitiateBridgeHandler handles POST /bridge/initiate.
func (h *BridgeHandler) InitiateBridgeHandler(c *gin.Context) {
	user, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req InitiateBridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !common.IsHexAddress(req.Token) {
		badRequest(c, "Invalid token address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		badRequest(c, "Invalid amount")
		return
	}

	var executeData []byte
	if req.ExecuteData != "" {
		decoded, err := hexutil.Decode(req.ExecuteData)
		if err != nil {
			badRequest(c, "Invalid execute_data encoding")
			return
		}
		executeData = decoded
	}

	key, err := h.bridge.Initiate(c.Request.Context(), user, common.HexToAddress(req.Token), amount, req.ToChainID, executeData)
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"operation_key": key.Hex(),
	})
}

// OperationHandler handles GET /bridge/operations/:key. Unknown keys return
// a zero-valued record, matching the ledger contract.
func (h *BridgeHandler) OperationHandler(c *gin.Context) {
	raw := c.Param("key")
	if len(raw) != 66 || raw[:2] != "0x" {
		badRequest(c, "Invalid operation key")
		return
	}

	op := h.bridge.Operation(common.HexToHash(raw))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"operation": op,
	})
}

// HistoryHandler handles GET /bridge/history, the caller's operation keys in
// initiation order.
func (h *BridgeHandler) HistoryHandler(c *gin.Context) {
	user, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	keys := h.bridge.History(user)
	hexKeys := make([]string, len(keys))
	for i, k := range keys {
		hexKeys[i] = k.Hex()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"keys":    hexKeys,
		"count":   len(hexKeys),
	})
}

// RecordsHandler handles GET /bridge/records, the paginated read-model rows.
func (h *BridgeHandler) RecordsHandler(c *gin.Context) {
	user, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	page, limit := pagination(c)
	records, total, err := h.bridge.PersistedHistory(c.Request.Context(), user, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load bridge records",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"records": records,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

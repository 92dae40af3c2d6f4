package handlers

import (
	"net/http"
	"strconv"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// IntentHandler exposes yield intent submission and history.
type IntentHandler struct {
	intents *services.IntentService
}

func NewIntentHandler(intents *services.IntentService) *IntentHandler {
	return &IntentHandler{intents: intents}
}

// SubmitIntentRequest declares the conditions under which the agent may
// rebalance the caller's position.
type SubmitIntentRequest struct {
	MinAPYBps      uint32 `json:"min_apy_bps" binding:"required"`
	SlippageBps    uint32 `json:"slippage_bps"`
	TargetProtocol string `json:"target_protocol" binding:"required"`
	TargetChainID  uint64 `json:"target_chain_id" binding:"required"`
	MaxGasPrice    uint64 `json:"max_gas_price"`
}

// SubmitIntentHandler handles POST /intents.
func (h *IntentHandler) SubmitIntentHandler(c *gin.Context) {
	owner, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req SubmitIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !common.IsHexAddress(req.TargetProtocol) {
		badRequest(c, "Invalid target protocol address")
		return
	}

	index, err := h.intents.Submit(c.Request.Context(), owner, ledger.IntentSubmission{
		MinAPYBps:      req.MinAPYBps,
		SlippageBps:    req.SlippageBps,
		TargetProtocol: common.HexToAddress(req.TargetProtocol),
		TargetChainID:  req.TargetChainID,
		MaxGasPrice:    req.MaxGasPrice,
	})
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"index":   index,
	})
}

// DeactivateIntentHandler handles POST /intents/:index/deactivate.
func (h *IntentHandler) DeactivateIntentHandler(c *gin.Context) {
	owner, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	index, err := strconv.ParseUint(c.Param("index"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid intent index")
		return
	}

	if err := h.intents.Deactivate(c.Request.Context(), owner, uint32(index)); err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListIntentsHandler handles GET /intents. ?active=true narrows to active
// intents.
func (h *IntentHandler) ListIntentsHandler(c *gin.Context) {
	owner, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var intents []ledger.Intent
	if c.Query("active") == "true" {
		intents = h.intents.ListActive(owner)
	} else {
		intents = h.intents.ListByOwner(owner)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"intents": intents,
		"count":   len(intents),
	})
}

// ExecutionsHandler handles GET /intents/executions, the persisted rebalance
// history.
func (h *IntentHandler) ExecutionsHandler(c *gin.Context) {
	owner, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	page, limit := pagination(c)
	execs, total, err := h.intents.Executions(c.Request.Context(), owner, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load executions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"executions": execs,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}

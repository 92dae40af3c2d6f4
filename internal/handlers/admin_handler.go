package handlers

import (
	"net/http"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operator controls. Every ledger mutation runs as the
// configured admin principal; the HTTP layer has already authenticated the
// operator via JWT and TOTP.
type AdminHandler struct {
	core   *ledger.Core
	admin  common.Address
	vault  *services.VaultService
	intent *services.IntentService
	bridge *services.BridgeService
	oracle *services.OracleService
	push   *services.WebSocketPushService
}

func NewAdminHandler(core *ledger.Core, admin common.Address, vault *services.VaultService, intent *services.IntentService, bridge *services.BridgeService, oracle *services.OracleService, push *services.WebSocketPushService) *AdminHandler {
	return &AdminHandler{
		core:   core,
		admin:  admin,
		vault:  vault,
		intent: intent,
		bridge: bridge,
		oracle: oracle,
		push:   push,
	}
}

// RoleRequest grants or revokes a ledger role.
type RoleRequest struct {
	Role      string `json:"role" binding:"required"` // ADMIN, AGENT or BRIDGE
	Principal string `json:"principal" binding:"required"`
}

// DepositLimitsRequest updates the vault deposit bounds.
type DepositLimitsRequest struct {
	Min string `json:"min" binding:"required"`
	Max string `json:"max" binding:"required"`
}

// BridgeFeeRequest updates the bridge fee.
type BridgeFeeRequest struct {
	FeeBps uint32 `json:"fee_bps"`
}

// SupportedTokenRequest maintains the bridge token allowlist.
type SupportedTokenRequest struct {
	Token     string `json:"token" binding:"required"`
	Supported bool   `json:"supported"`
}

// SupportedChainRequest maintains the bridge and intent chain allowlists.
type SupportedChainRequest struct {
	ChainID   uint64 `json:"chain_id" binding:"required"`
	Supported bool   `json:"supported"`
}

// RegisterFeedRequest binds a symbol to an oracle feed id.
type RegisterFeedRequest struct {
	FeedID string `json:"feed_id" binding:"required"`
	Symbol string `json:"symbol" binding:"required"`
}

// UpdateAPYRequest records an APY reading for a feed.
type UpdateAPYRequest struct {
	FeedID string `json:"feed_id" binding:"required"`
	APYBps uint32 `json:"apy_bps"`
}

func parseRole(s string) (ledger.Role, bool) {
	switch s {
	case string(ledger.RoleAdmin):
		return ledger.RoleAdmin, true
	case string(ledger.RoleAgent):
		return ledger.RoleAgent, true
	case string(ledger.RoleBridge):
		return ledger.RoleBridge, true
	default:
		return "", false
	}
}

// GrantRoleHandler handles POST /admin/roles/grant.
func (h *AdminHandler) GrantRoleHandler(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		badRequest(c, "Unknown role")
		return
	}
	if !common.IsHexAddress(req.Principal) {
		badRequest(c, "Invalid principal address")
		return
	}

	if err := h.core.Access.GrantRole(h.admin, role, common.HexToAddress(req.Principal)); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RevokeRoleHandler handles POST /admin/roles/revoke.
func (h *AdminHandler) RevokeRoleHandler(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		badRequest(c, "Unknown role")
		return
	}
	if !common.IsHexAddress(req.Principal) {
		badRequest(c, "Invalid principal address")
		return
	}

	if err := h.core.Access.RevokeRole(h.admin, role, common.HexToAddress(req.Principal)); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PauseVaultHandler handles POST /admin/vault/pause.
func (h *AdminHandler) PauseVaultHandler(c *gin.Context) {
	if err := h.vault.Pause(h.admin); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnpauseVaultHandler handles POST /admin/vault/unpause.
func (h *AdminHandler) UnpauseVaultHandler(c *gin.Context) {
	if err := h.vault.Unpause(h.admin); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetDepositLimitsHandler handles POST /admin/vault/limits.
func (h *AdminHandler) SetDepositLimitsHandler(c *gin.Context) {
	var req DepositLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	min, ok := parseAmount(req.Min)
	if !ok {
		badRequest(c, "Invalid min")
		return
	}
	max, ok := parseAmount(req.Max)
	if !ok {
		badRequest(c, "Invalid max")
		return
	}

	if err := h.vault.SetDepositLimits(h.admin, min, max); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PauseIntentsHandler handles POST /admin/intents/pause.
func (h *AdminHandler) PauseIntentsHandler(c *gin.Context) {
	if err := h.intent.Pause(h.admin); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnpauseIntentsHandler handles POST /admin/intents/unpause.
func (h *AdminHandler) UnpauseIntentsHandler(c *gin.Context) {
	if err := h.intent.Unpause(h.admin); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetBridgeFeeHandler handles POST /admin/bridge/fee.
func (h *AdminHandler) SetBridgeFeeHandler(c *gin.Context) {
	var req BridgeFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.bridge.SetFee(h.admin, req.FeeBps); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetSupportedTokenHandler handles POST /admin/bridge/tokens.
func (h *AdminHandler) SetSupportedTokenHandler(c *gin.Context) {
	var req SupportedTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !common.IsHexAddress(req.Token) {
		badRequest(c, "Invalid token address")
		return
	}

	if err := h.bridge.SetSupportedToken(h.admin, common.HexToAddress(req.Token), req.Supported); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetSupportedChainHandler handles POST /admin/bridge/chains. Keeps the
// bridge and intent chain allowlists in step.
func (h *AdminHandler) SetSupportedChainHandler(c *gin.Context) {
	var req SupportedChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.bridge.SetSupportedChain(h.admin, req.ChainID, req.Supported); err != nil {
		ledgerError(c, err)
		return
	}
	if err := h.core.Intent.SetSupportedChain(h.admin, req.ChainID, req.Supported); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RegisterFeedHandler handles POST /admin/oracle/feeds.
func (h *AdminHandler) RegisterFeedHandler(c *gin.Context) {
	var req RegisterFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if len(req.FeedID) != 66 || req.FeedID[:2] != "0x" {
		badRequest(c, "Invalid feed id")
		return
	}

	if err := h.oracle.RegisterFeed(h.admin, common.HexToHash(req.FeedID), req.Symbol); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateAPYHandler handles POST /admin/oracle/apy.
func (h *AdminHandler) UpdateAPYHandler(c *gin.Context) {
	var req UpdateAPYRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if len(req.FeedID) != 66 || req.FeedID[:2] != "0x" {
		badRequest(c, "Invalid feed id")
		return
	}

	if err := h.oracle.UpdateAPY(h.admin, common.HexToHash(req.FeedID), req.APYBps); err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SystemStatusHandler handles GET /admin/status.
func (h *AdminHandler) SystemStatusHandler(c *gin.Context) {
	stats := h.vault.Stats()
	status := gin.H{
		"vault_paused":    stats.Paused,
		"executor_paused": h.core.Intent.Paused(),
		"total_assets":    stats.TotalAssets.String(),
		"total_shares":    stats.TotalShares.String(),
		"apy_bps":         stats.APYBps,
		"bridge_fee_bps":  h.core.Bridge.FeeBps(),
	}
	if h.push != nil {
		status["websocket_connections"] = h.push.ActiveConnections()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status,
	})
}

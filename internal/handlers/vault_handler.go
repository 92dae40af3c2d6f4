package handlers

import (
	"errors"
	"net/http"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// VaultHandler exposes deposits, withdrawals and vault accounting.
type VaultHandler struct {
	vault *services.VaultService
}

func NewVaultHandler(vault *services.VaultService) *VaultHandler {
	return &VaultHandler{vault: vault}
}

// DepositRequest moves base units of the underlying asset into the vault.
type DepositRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Receiver string `json:"receiver"`
}

// WithdrawRequest pays out base units of the underlying asset.
type WithdrawRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Receiver string `json:"receiver"`
}

// RedeemRequest burns an exact share count.
type RedeemRequest struct {
	Shares   string `json:"shares" binding:"required"`
	Receiver string `json:"receiver"`
}

// DepositHandler handles POST /vault/deposit.
func (h *VaultHandler) DepositHandler(c *gin.Context) {
	caller, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		badRequest(c, "Invalid amount")
		return
	}

	receiver := caller
	if req.Receiver != "" {
		if !common.IsHexAddress(req.Receiver) {
			badRequest(c, "Invalid receiver address")
			return
		}
		receiver = common.HexToAddress(req.Receiver)
	}

	shares, err := h.vault.Deposit(caller, amount, receiver)
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"shares":  shares.String(),
	})
}

// WithdrawHandler handles POST /vault/withdraw.
func (h *VaultHandler) WithdrawHandler(c *gin.Context) {
	caller, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		badRequest(c, "Invalid amount")
		return
	}

	receiver := caller
	if req.Receiver != "" {
		if !common.IsHexAddress(req.Receiver) {
			badRequest(c, "Invalid receiver address")
			return
		}
		receiver = common.HexToAddress(req.Receiver)
	}

	burned, err := h.vault.Withdraw(caller, amount, receiver, caller)
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"shares_burned": burned.String(),
	})
}

// RedeemHandler handles POST /vault/redeem.
func (h *VaultHandler) RedeemHandler(c *gin.Context) {
	caller, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	shares, ok := parseAmount(req.Shares)
	if !ok {
		badRequest(c, "Invalid share count")
		return
	}

	receiver := caller
	if req.Receiver != "" {
		if !common.IsHexAddress(req.Receiver) {
			badRequest(c, "Invalid receiver address")
			return
		}
		receiver = common.HexToAddress(req.Receiver)
	}

	assets, err := h.vault.Redeem(caller, shares, receiver, caller)
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"assets":  assets.String(),
	})
}

// PositionHandler handles GET /vault/position.
func (h *VaultHandler) PositionHandler(c *gin.Context) {
	caller, ok := authenticatedUser(c)
	if !ok {
		unauthorized(c)
		return
	}

	position := h.vault.Position(caller)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"position": position,
	})
}

// StatsHandler handles GET /vault/stats. Public.
func (h *VaultHandler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.vault.Stats(),
	})
}

// ledgerError maps ledger sentinel errors onto HTTP statuses.
func ledgerError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorizedAgent),
		errors.Is(err, ledger.ErrUnauthorizedAccount):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrIntentNotFound),
		errors.Is(err, ledger.ErrOperationNotFound),
		errors.Is(err, ledger.ErrFeedNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrVaultPaused),
		errors.Is(err, ledger.ErrExecutorPaused),
		errors.Is(err, ledger.ErrIntentNotActive):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidIntent),
		errors.Is(err, ledger.ErrInvalidSlippage),
		errors.Is(err, ledger.ErrUnsupportedProtocol),
		errors.Is(err, ledger.ErrUnsupportedChain),
		errors.Is(err, ledger.ErrUnsupportedToken):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFee):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrStalePrice):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

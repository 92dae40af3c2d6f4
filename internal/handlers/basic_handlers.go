package handlers

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

// HealthHandler reports liveness.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// StatusHandler reports service identity and uptime.
func StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "yieldforge",
		"status":  "running",
		"uptime":  time.Since(startedAt).String(),
	})
}

// authenticatedUser returns the address set by the auth middleware.
func authenticatedUser(c *gin.Context) (common.Address, bool) {
	raw, exists := c.Get("user_address")
	if !exists {
		return common.Address{}, false
	}
	addr, ok := raw.(string)
	if !ok || !common.IsHexAddress(addr) {
		return common.Address{}, false
	}
	return common.HexToAddress(addr), true
}

// parseAmount parses a decimal base-unit amount. Rejects empty, malformed
// and negative values.
func parseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}

// pagination reads page and limit query parameters with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "Authentication required",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
	})
}

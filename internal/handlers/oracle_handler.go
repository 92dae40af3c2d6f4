package handlers

import (
	"net/http"

	"github.com/lucifer1017/yieldforge/internal/repository"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/gin-gonic/gin"
)

// OracleHandler exposes price reads and APY queries. All routes are public.
type OracleHandler struct {
	oracle    *services.OracleService
	snapshots repository.PriceSnapshotRepository
}

func NewOracleHandler(oracle *services.OracleService, snapshots repository.PriceSnapshotRepository) *OracleHandler {
	return &OracleHandler{oracle: oracle, snapshots: snapshots}
}

// PriceHandler handles GET /oracle/price/:symbol. Stale prices are rejected
// unless ?allow_stale=true.
func (h *OracleHandler) PriceHandler(c *gin.Context) {
	feedID, err := h.oracle.ResolveFeed(c.Param("symbol"))
	if err != nil {
		ledgerError(c, err)
		return
	}

	if c.Query("allow_stale") == "true" {
		price, valid, err := h.oracle.LatestPrice(feedID)
		if err != nil {
			ledgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"price":   price,
			"valid":   valid,
		})
		return
	}

	price, err := h.oracle.ValidPrice(feedID)
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"price":   price,
		"valid":   true,
	})
}

// APYHandler handles GET /oracle/apy/:symbol.
func (h *OracleHandler) APYHandler(c *gin.Context) {
	feedID, err := h.oracle.ResolveFeed(c.Param("symbol"))
	if err != nil {
		ledgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"apy_bps": h.oracle.APY(feedID),
	})
}

// SnapshotsHandler handles GET /oracle/snapshots/:symbol, the persisted
// price history.
func (h *OracleHandler) SnapshotsHandler(c *gin.Context) {
	feedID, err := h.oracle.ResolveFeed(c.Param("symbol"))
	if err != nil {
		ledgerError(c, err)
		return
	}
	if h.snapshots == nil {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"snapshots": []any{},
			"total":     0,
		})
		return
	}

	page, limit := pagination(c)
	snapshots, total, err := h.snapshots.FindByFeed(c.Request.Context(), feedID.Hex(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load snapshots",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"snapshots": snapshots,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

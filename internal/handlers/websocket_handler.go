package handlers

import (
	"net/http"

	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades authenticated clients onto the push service.
type WebSocketHandler struct {
	push *services.WebSocketPushService
}

func NewWebSocketHandler(push *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{push: push}
}

// HandleWebSocket handles GET /ws. Browsers cannot set headers on websocket
// upgrades, so the session token arrives as a query parameter.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Missing token",
		})
		return
	}

	claims, err := ValidateJWTToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid or expired token",
		})
		return
	}

	h.push.HandleWebSocket(c.Writer, c.Request, claims.UserAddress)
}

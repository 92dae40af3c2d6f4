package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/models"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const nonceTTL = 5 * time.Minute

// JWTClaims is the authenticated wallet session.
type JWTClaims struct {
	UserAddress string `json:"user_address"`
	jwt.RegisteredClaims
}

// AuthRequest is the wallet login payload: the challenge message signed with
// personal_sign.
type AuthRequest struct {
	UserAddress string `json:"user_address" binding:"required"`
	Nonce       string `json:"nonce" binding:"required"`
	Message     string `json:"message" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// AuthResponse is the login result.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// AuthHandler issues nonce challenges and exchanges wallet signatures for
// JWT sessions.
type AuthHandler struct {
	nonces repository.AuthNonceRepository
	logger *logrus.Logger
}

func NewAuthHandler(nonces repository.AuthNonceRepository, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{nonces: nonces, logger: logger}
}

// GenerateNonceHandler issues a single-use login challenge for an address.
func (h *AuthHandler) GenerateNonceHandler(c *gin.Context) {
	address := c.Query("address")
	if !common.IsHexAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid address",
		})
		return
	}
	checksummed := common.HexToAddress(address).Hex()

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to generate nonce",
		})
		return
	}
	nonce := hex.EncodeToString(buf)
	issued := time.Now()

	record := &models.AuthNonce{
		Address:   checksummed,
		Nonce:     nonce,
		ExpiresAt: issued.Add(nonceTTL),
	}
	if err := h.nonces.Create(c.Request.Context(), record); err != nil {
		h.logger.WithError(err).Error("Failed to store auth nonce")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to store nonce",
		})
		return
	}

	message := fmt.Sprintf("YieldForge Authentication\nAddress: %s\nNonce: %s\nIssued At: %d",
		checksummed, nonce, issued.Unix())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"nonce":   nonce,
		"message": message,
	})
}

// AuthenticateHandler verifies a personal_sign signature over a previously
// issued nonce challenge and returns a session token.
func (h *AuthHandler) AuthenticateHandler(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	if !common.IsHexAddress(req.UserAddress) {
		c.JSON(http.StatusBadRequest, AuthResponse{
			Success: false,
			Message: "Invalid address",
		})
		return
	}
	claimed := common.HexToAddress(req.UserAddress)

	if !strings.Contains(req.Message, req.Nonce) {
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Message does not match challenge",
		})
		return
	}

	recovered, err := recoverSigner(req.Message, req.Signature)
	if err != nil || recovered != claimed {
		h.logger.WithFields(logrus.Fields{
			"claimed": claimed.Hex(),
		}).Warn("Signature verification failed")
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Signature verification failed",
		})
		return
	}

	// Burns the nonce; a second login attempt with the same challenge fails.
	if err := h.nonces.Consume(c.Request.Context(), claimed.Hex(), req.Nonce); err != nil {
		c.JSON(http.StatusUnauthorized, AuthResponse{
			Success: false,
			Message: "Unknown or expired nonce",
		})
		return
	}

	token, err := generateJWTToken(claimed.Hex())
	if err != nil {
		h.logger.WithError(err).Error("Failed to sign session token")
		c.JSON(http.StatusInternalServerError, AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.logger.WithField("user", claimed.Hex()).Info("Wallet authenticated")
	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Token:   token,
		Message: "Authentication successful",
	})
}

// recoverSigner returns the address that produced a personal_sign signature
// over message.
func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	// Wallets return V as 27/28; crypto expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte{}, sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	pubkey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

func generateJWTToken(userAddress string) (string, error) {
	expiry := 24 * time.Hour
	if config.AppConfig != nil && config.AppConfig.JWT.ExpiryHours > 0 {
		expiry = time.Duration(config.AppConfig.JWT.ExpiryHours) * time.Hour
	}

	claims := JWTClaims{
		UserAddress: userAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "yieldforge",
			Subject:   userAddress,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateJWTToken verifies a session token and returns its claims.
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func jwtSecret() []byte {
	if config.AppConfig != nil && config.AppConfig.JWT.Secret != "" {
		return []byte(config.AppConfig.JWT.Secret)
	}
	return []byte("yieldforge-dev-jwt-secret-change-me")
}

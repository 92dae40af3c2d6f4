package handlers

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDeployer = common.HexToAddress("0x00000000000000000000000000000000000000AD")
	testUser     = common.HexToAddress("0x0000000000000000000000000000000000000101")
	testAsset    = common.HexToAddress("0x000000000000000000000000000000000000BEEF")
)

func testUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

func newTestRouter(t *testing.T) (*gin.Engine, *ledger.Core) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core := ledger.New(ledger.DefaultConfig(testDeployer, testAsset, 31337), nil, nil)
	require.NoError(t, core.Tokens.Mint(testAsset, testUser, testUnits(10_000)))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	handler := NewVaultHandler(services.NewVaultService(core, logger))

	router := gin.New()
	asUser := func(c *gin.Context) {
		c.Set("user_address", testUser.Hex())
		c.Next()
	}
	router.POST("/vault/deposit", asUser, handler.DepositHandler)
	router.POST("/vault/withdraw", asUser, handler.WithdrawHandler)
	router.POST("/vault/redeem", asUser, handler.RedeemHandler)
	router.GET("/vault/position", asUser, handler.PositionHandler)
	router.GET("/vault/stats", handler.StatsHandler)
	router.POST("/vault/deposit-anon", handler.DepositHandler)
	return router, core
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDepositHandler(t *testing.T) {
	router, core := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit", `{"amount":"5000000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool   `json:"success"`
		Shares  string `json:"shares"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "5000000", resp.Shares)

	assert.Equal(t, 0, core.Vault.BalanceOf(testUser).Cmp(testUnits(5)))
}

func TestDepositHandlerRejectsBelowMinimum(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit", `{"amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ledger.ErrInvalidAmount.Error())
}

func TestDepositHandlerRejectsMalformedAmount(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{`{"amount":"abc"}`, `{"amount":"-5"}`, `{}`} {
		rec := doJSON(t, router, http.MethodPost, "/vault/deposit", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestDepositHandlerRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit-anon", `{"amount":"5000000"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWithdrawHandlerRoundTrip(t *testing.T) {
	router, core := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit", `{"amount":"5000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/vault/withdraw", `{"amount":"2000000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, 0, core.Vault.BalanceOf(testUser).Cmp(testUnits(3)))
	assert.Equal(t, 0, core.Tokens.BalanceOf(testAsset, testUser).Cmp(testUnits(9_997)))
}

func TestWithdrawHandlerBeyondRedeemable(t *testing.T) {
	router, _ := newTestRouter(t)

	// Exceeding the redeemable balance is an invalid amount, not an
	// insufficiency.
	rec := doJSON(t, router, http.MethodPost, "/vault/withdraw", `{"amount":"2000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ledger.ErrInvalidAmount.Error())
}

func TestDepositHandlerWhenPaused(t *testing.T) {
	router, core := newTestRouter(t)
	require.NoError(t, core.Vault.Pause(testDeployer))

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit", `{"amount":"5000000"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), ledger.ErrVaultPaused.Error())
}

func TestPositionHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/vault/deposit", `{"amount":"5000000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/vault/position", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Position struct {
			Shares *big.Int `json:"shares"`
		} `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Position.Shares)
	assert.Equal(t, 0, resp.Position.Shares.Cmp(testUnits(5)))
}

func TestStatsHandlerIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/vault/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Stats struct {
			APYBps uint32 `json:"apy_bps"`
			Paused bool   `json:"paused"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint32(500), resp.Stats.APYBps)
	assert.False(t, resp.Stats.Paused)
}

package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/handlers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// Development helper: mints a session token for an address without going
// through the wallet signature flow.
func main() {
	address := flag.String("address", "", "wallet address to issue the token for")
	hours := flag.Int("hours", 24, "token validity in hours")
	flag.Parse()

	if !common.IsHexAddress(*address) {
		log.Fatalf("🛑 invalid or missing -address")
	}
	checksummed := common.HexToAddress(*address).Hex()

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("🛑 failed to load config: %v", err)
	}

	claims := handlers.JWTClaims{
		UserAddress: checksummed,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(*hours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "yieldforge",
			Subject:   checksummed,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.AppConfig.JWT.Secret))
	if err != nil {
		log.Fatalf("🛑 failed to sign token: %v", err)
	}

	fmt.Printf("✅ Token for %s (valid %dh):\n%s\n", checksummed, *hours, signed)
}

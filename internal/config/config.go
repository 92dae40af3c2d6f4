package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	JWT      JWTConfig      `yaml:"jwt"`
	Admin    AdminConfig    `yaml:"admin"`
	CORS     CORSConfig     `yaml:"cors"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Agent    AgentConfig    `yaml:"agent"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// JWTConfig token signing configuration
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
	TOTPSecret string   `yaml:"totpSecret"`
	JWTSecret  string   `yaml:"jwtSecret"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// LedgerConfig seeds the in-memory ledger core at startup.
type LedgerConfig struct {
	Deployer        string   `yaml:"deployer"`        // bootstrap ADMIN address
	AgentAddress    string   `yaml:"agentAddress"`    // scheduler principal, granted AGENT
	Asset           string   `yaml:"asset"`           // underlying stablecoin address
	NativeChainID   uint64   `yaml:"nativeChainId"`   // chain this deployment accounts on
	SupportedChains []uint64 `yaml:"supportedChains"` // bridge / intent target allowlist
	MinDeposit      string   `yaml:"minDeposit"`      // base units
	MaxDeposit      string   `yaml:"maxDeposit"`      // base units
	VaultAPYBps     uint32   `yaml:"vaultApyBps"`
	BridgeFeeBps    uint32   `yaml:"bridgeFeeBps"`
	MaxBridgeAmount string   `yaml:"maxBridgeAmount"` // base units
}

// OracleConfig price feed configuration
type OracleConfig struct {
	HermesBaseURL  string            `yaml:"hermesBaseUrl"`
	Timeout        int               `yaml:"timeout"`        // request timeout (seconds)
	UpdateInterval int               `yaml:"updateInterval"` // seconds between pulls
	MinUpdateFee   string            `yaml:"minUpdateFee"`   // wei
	MaxPriceAge    int               `yaml:"maxPriceAge"`    // seconds before a price is stale
	Feeds          map[string]string `yaml:"feeds"`          // symbol -> feed id (hex)
}

// AgentConfig rebalance scheduler configuration
type AgentConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ScanInterval  int    `yaml:"scanInterval"`  // seconds between intent scans
	APYFeedID     string `yaml:"apyFeedId"`     // feed consulted for the current market APY
	MinYieldDelta uint32 `yaml:"minYieldDelta"` // bps the market APY must beat the intent's MinAPYBps by
}

var AppConfig *Config

// LoadConfig loads the configuration file, preferring config.local.yaml when
// present, then applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if config.JWT.ExpiryHours <= 0 {
		config.JWT.ExpiryHours = 24
	}
	if config.Oracle.UpdateInterval <= 0 {
		config.Oracle.UpdateInterval = 30
	}
	if config.Oracle.MaxPriceAge <= 0 {
		config.Oracle.MaxPriceAge = 60
	}
	if config.Agent.ScanInterval <= 0 {
		config.Agent.ScanInterval = 60
	}

	log.Printf("✅ Configuration loaded from %s", configPath)
	if len(config.Admin.AllowedIPs) > 0 {
		log.Printf("📋 Admin IP whitelist: %d entries", len(config.Admin.AllowedIPs))
	} else {
		log.Printf("📋 Admin IP whitelist: not configured (localhost-only mode)")
	}

	AppConfig = &config
	return nil
}

// overrideFromEnv applies environment variable overrides on top of the file.
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}
	if secret := os.Getenv("ADMIN_TOTP_SECRET"); secret != "" {
		config.Admin.TOTPSecret = secret
	}

	if hermes := os.Getenv("HERMES_BASE_URL"); hermes != "" {
		config.Oracle.HermesBaseURL = hermes
	}

	if deployer := os.Getenv("LEDGER_DEPLOYER"); deployer != "" {
		config.Ledger.Deployer = deployer
	}
	if agentAddr := os.Getenv("AGENT_ADDRESS"); agentAddr != "" {
		config.Ledger.AgentAddress = agentAddr
	}
	if asset := os.Getenv("LEDGER_ASSET"); asset != "" {
		config.Ledger.Asset = asset
	}
	if chainID := os.Getenv("NATIVE_CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseUint(chainID, 10, 64); err == nil {
			config.Ledger.NativeChainID = id
		}
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// GetHermesURL returns the Hermes price service URL.
func GetHermesURL() string {
	if AppConfig != nil && AppConfig.Oracle.HermesBaseURL != "" {
		return AppConfig.Oracle.HermesBaseURL
	}
	if hermesURL := os.Getenv("HERMES_BASE_URL"); hermesURL != "" {
		return hermesURL
	}
	return "https://hermes.pyth.network"
}

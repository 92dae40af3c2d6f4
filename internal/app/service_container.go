package app

import (
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/lucifer1017/yieldforge/internal/clients"
	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/db"
	"github.com/lucifer1017/yieldforge/internal/events"
	"github.com/lucifer1017/yieldforge/internal/handlers"
	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/repository"
	"github.com/lucifer1017/yieldforge/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer owns every long-lived component and wires them once at
// startup.
type ServiceContainer struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	// Ledger core
	Core  *ledger.Core
	Admin common.Address
	Agent common.Address

	// Repositories
	EventRepo    repository.LedgerEventRepository
	IntentRepo   repository.IntentRepository
	BridgeRepo   repository.BridgeOperationRepository
	SnapshotRepo repository.PriceSnapshotRepository
	NonceRepo    repository.AuthNonceRepository

	// Clients
	NATSClient *clients.NATSClient
	PythClient *clients.PythClient
	GasClient  *clients.GasPriceClient

	// Event pipeline
	EventSink *events.LedgerEventSink

	// Services
	VaultService          *services.VaultService
	IntentService         *services.IntentService
	BridgeService         *services.BridgeService
	OracleService         *services.OracleService
	PushService           *services.WebSocketPushService
	PriceUpdateService    *services.PriceUpdateService
	AgentSchedulerService *services.AgentSchedulerService

	// Handlers
	AuthHandler      *handlers.AuthHandler
	AdminAuthHandler *handlers.AdminAuthHandler
	VaultHandler     *handlers.VaultHandler
	IntentHandler    *handlers.IntentHandler
	BridgeHandler    *handlers.BridgeHandler
	OracleHandler    *handlers.OracleHandler
	AdminHandler     *handlers.AdminHandler
	WebSocketHandler *handlers.WebSocketHandler
}

var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once.
func InitializeContainer(logger *logrus.Logger) (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing service container...")

		container := &ServiceContainer{
			DB:     db.DB,
			Logger: logger,
		}

		container.initRepositories()

		if err := container.initClients(); err != nil {
			initErr = err
			return
		}

		if err := container.initCore(); err != nil {
			initErr = fmt.Errorf("failed to initialize ledger core: %w", err)
			return
		}

		container.initServices()
		container.initHandlers()

		Container = container
		log.Println("✅ Service container initialized")
	})

	if initErr != nil {
		return nil, initErr
	}
	return Container, nil
}

func (c *ServiceContainer) initRepositories() {
	if c.DB == nil {
		log.Println("⚠️ Database not initialized, read models disabled")
		return
	}
	c.EventRepo = repository.NewLedgerEventRepository(c.DB)
	c.IntentRepo = repository.NewIntentRepository(c.DB)
	c.BridgeRepo = repository.NewBridgeOperationRepository(c.DB)
	c.SnapshotRepo = repository.NewPriceSnapshotRepository(c.DB)
	c.NonceRepo = repository.NewAuthNonceRepository(c.DB)
	log.Println("📋 Repositories initialized")
}

func (c *ServiceContainer) initClients() error {
	cfg := config.AppConfig

	if cfg.NATS.URL != "" {
		natsClient, err := clients.NewNATSClient(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Printf("⚠️ NATS unavailable, events will not be published: %v", err)
		} else {
			c.NATSClient = natsClient
		}
	}

	c.PythClient = clients.NewPythClient(config.GetHermesURL(), cfg.Oracle.Timeout)
	c.GasClient = clients.NewGasPriceClient()
	return nil
}

func (c *ServiceContainer) initCore() error {
	cfg := config.AppConfig

	if !common.IsHexAddress(cfg.Ledger.Deployer) {
		return fmt.Errorf("invalid ledger deployer address: %q", cfg.Ledger.Deployer)
	}
	if !common.IsHexAddress(cfg.Ledger.Asset) {
		return fmt.Errorf("invalid ledger asset address: %q", cfg.Ledger.Asset)
	}
	c.Admin = common.HexToAddress(cfg.Ledger.Deployer)
	asset := common.HexToAddress(cfg.Ledger.Asset)

	coreCfg := ledger.DefaultConfig(c.Admin, asset, cfg.Ledger.NativeChainID)
	if len(cfg.Ledger.SupportedChains) > 0 {
		coreCfg.Bridge.SupportedChains = cfg.Ledger.SupportedChains
		coreCfg.Intent.SupportedChains = cfg.Ledger.SupportedChains
	}
	if min, ok := new(big.Int).SetString(cfg.Ledger.MinDeposit, 10); ok {
		coreCfg.Vault.MinDeposit = min
	}
	if max, ok := new(big.Int).SetString(cfg.Ledger.MaxDeposit, 10); ok {
		coreCfg.Vault.MaxDeposit = max
	}
	if cfg.Ledger.VaultAPYBps > 0 {
		coreCfg.Vault.APYBps = cfg.Ledger.VaultAPYBps
	}
	if cfg.Ledger.BridgeFeeBps > 0 {
		coreCfg.Bridge.FeeBps = cfg.Ledger.BridgeFeeBps
	}
	if max, ok := new(big.Int).SetString(cfg.Ledger.MaxBridgeAmount, 10); ok {
		coreCfg.Bridge.MaxBridgeAmount = max
	}
	if fee, ok := new(big.Int).SetString(cfg.Oracle.MinUpdateFee, 10); ok {
		coreCfg.OracleMinUpdateFee = fee
	}

	// The sink is handed to the core before its outputs exist; the push
	// target is attached in initServices.
	c.EventSink = events.NewLedgerEventSink(c.NATSClient, c.EventRepo, nil, c.Logger)

	c.Core = ledger.New(coreCfg, c.PythClient, c.EventSink)

	if cfg.Ledger.AgentAddress != "" {
		if !common.IsHexAddress(cfg.Ledger.AgentAddress) {
			return fmt.Errorf("invalid agent address: %q", cfg.Ledger.AgentAddress)
		}
		c.Agent = common.HexToAddress(cfg.Ledger.AgentAddress)
		if err := c.Core.Access.GrantRole(c.Admin, ledger.RoleAgent, c.Agent); err != nil {
			return fmt.Errorf("failed to grant AGENT role: %w", err)
		}
	} else {
		// Fall back to the executor's own principal so scheduled
		// executions still pass role checks.
		c.Agent = ledger.ExecutorAccount
	}

	for symbol, feedHex := range cfg.Oracle.Feeds {
		if len(feedHex) != 66 {
			return fmt.Errorf("invalid feed id for %s: %q", symbol, feedHex)
		}
		if err := c.Core.Oracle.RegisterFeed(c.Admin, common.HexToHash(feedHex), symbol); err != nil {
			return fmt.Errorf("failed to register feed %s: %w", symbol, err)
		}
	}

	log.Printf("🔧 Ledger core initialized: chain=%d, feeds=%d", cfg.Ledger.NativeChainID, len(cfg.Oracle.Feeds))
	return nil
}

func (c *ServiceContainer) initServices() {
	cfg := config.AppConfig

	c.PushService = services.NewWebSocketPushService(c.Logger)
	c.EventSink.SetPusher(c.PushService)

	maxPriceAge := time.Duration(cfg.Oracle.MaxPriceAge) * time.Second

	c.VaultService = services.NewVaultService(c.Core, c.Logger)
	c.IntentService = services.NewIntentService(c.Core, c.IntentRepo, c.Agent, c.Logger)
	c.BridgeService = services.NewBridgeService(c.Core, c.BridgeRepo, c.Agent, c.Logger)
	c.OracleService = services.NewOracleService(c.Core, maxPriceAge, c.Logger)

	feeds := make(map[string]common.Hash, len(cfg.Oracle.Feeds))
	for symbol, feedHex := range cfg.Oracle.Feeds {
		feeds[symbol] = common.HexToHash(feedHex)
	}
	c.PriceUpdateService = services.NewPriceUpdateService(
		c.Core, c.PythClient, c.SnapshotRepo, feeds,
		time.Duration(cfg.Oracle.UpdateInterval)*time.Second, c.Logger)

	if cfg.Agent.Enabled {
		c.AgentSchedulerService = services.NewAgentSchedulerService(
			c.IntentService, c.OracleService, c.IntentRepo, c.GasClient,
			common.HexToHash(cfg.Agent.APYFeedID), cfg.Agent.MinYieldDelta,
			time.Duration(cfg.Agent.ScanInterval)*time.Second, c.Logger)
	}

	log.Println("📋 Services initialized")
}

func (c *ServiceContainer) initHandlers() {
	c.AuthHandler = handlers.NewAuthHandler(c.NonceRepo, c.Logger)
	c.AdminAuthHandler = handlers.NewAdminAuthHandler(c.Logger)
	c.VaultHandler = handlers.NewVaultHandler(c.VaultService)
	c.IntentHandler = handlers.NewIntentHandler(c.IntentService)
	c.BridgeHandler = handlers.NewBridgeHandler(c.BridgeService)
	c.OracleHandler = handlers.NewOracleHandler(c.OracleService, c.SnapshotRepo)
	c.AdminHandler = handlers.NewAdminHandler(c.Core, c.Admin, c.VaultService, c.IntentService, c.BridgeService, c.OracleService, c.PushService)
	c.WebSocketHandler = handlers.NewWebSocketHandler(c.PushService)
}

// Start brings up the background workers.
func (c *ServiceContainer) Start() {
	c.EventSink.Start()
	c.PriceUpdateService.Start()
	if c.AgentSchedulerService != nil {
		c.AgentSchedulerService.Start()
	}
}

// Stop shuts the background workers down in reverse order.
func (c *ServiceContainer) Stop() {
	if c.AgentSchedulerService != nil {
		c.AgentSchedulerService.Stop()
	}
	c.PriceUpdateService.Stop()
	c.EventSink.Stop()
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
}

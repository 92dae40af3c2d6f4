package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Vault metrics
	// ============================================
	VaultDeposits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yieldforge_vault_deposits_total",
		Help: "Total number of vault deposits",
	})

	VaultWithdrawals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yieldforge_vault_withdrawals_total",
		Help: "Total number of vault withdrawals",
	})

	VaultTotalAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldforge_vault_total_assets",
		Help: "Vault total assets in base units",
	})

	VaultTotalShares = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldforge_vault_total_shares",
		Help: "Vault total shares outstanding",
	})

	VaultAPYBps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldforge_vault_apy_bps",
		Help: "Current vault APY in basis points",
	})

	// ============================================
	// Intent metrics
	// ============================================
	IntentsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yieldforge_intents_submitted_total",
		Help: "Total number of intents submitted",
	})

	RebalancesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_rebalances_executed_total",
			Help: "Total number of rebalance executions",
		},
		[]string{"outcome"},
	)

	RebalanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yieldforge_rebalance_duration_seconds",
		Help:    "Rebalance execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// Bridge metrics
	// ============================================
	BridgeOperationsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_bridge_operations_initiated_total",
			Help: "Total number of bridge operations initiated",
		},
		[]string{"to_chain"},
	)

	BridgeOperationsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_bridge_operations_executed_total",
			Help: "Total number of bridge operations executed",
		},
		[]string{"to_chain"},
	)

	// ============================================
	// Oracle metrics
	// ============================================
	PriceUpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_price_updates_received_total",
			Help: "Total number of price updates pulled from the oracle network",
		},
		[]string{"symbol"},
	)

	PriceUpdateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yieldforge_price_update_failures_total",
		Help: "Total number of failed oracle pulls",
	})

	OraclePriceAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "yieldforge_oracle_price_age_seconds",
			Help: "Age of the cached price per feed",
		},
		[]string{"symbol"},
	)

	// ============================================
	// NATS and infrastructure metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldforge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject"},
	)

	NATSPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldforge_nats_publish_failures_total",
			Help: "Total number of failed NATS publishes",
		},
		[]string{"subject"},
	)

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldforge_websocket_connections",
		Help: "Number of active websocket subscribers",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yieldforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

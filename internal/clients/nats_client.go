package clients

import (
	"fmt"
	"log"
	"time"

	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/metrics"

	"github.com/nats-io/nats.go"
)

// NATSClient wraps the NATS connection used to publish ledger events.
type NATSClient struct {
	conn          *nats.Conn
	subjectPrefix string
}

// NewNATSClient connects to the NATS server with the configured timeouts
// and reconnect policy.
func NewNATSClient(url, subjectPrefix string) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	reconnectWait := 5 * time.Second
	maxReconnects := -1
	if config.AppConfig != nil {
		if config.AppConfig.NATS.Timeout > 0 {
			connectTimeout = time.Duration(config.AppConfig.NATS.Timeout) * time.Second
		}
		if config.AppConfig.NATS.ReconnectWait > 0 {
			reconnectWait = time.Duration(config.AppConfig.NATS.ReconnectWait) * time.Second
		}
		if config.AppConfig.NATS.MaxReconnects != 0 {
			maxReconnects = config.AppConfig.NATS.MaxReconnects
		}
	}

	conn, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected to %s", nc.ConnectedUrl())
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	if subjectPrefix == "" {
		subjectPrefix = "yieldforge"
	}

	return &NATSClient{conn: conn, subjectPrefix: subjectPrefix}, nil
}

// Publish sends a payload on prefix.suffix (e.g. yieldforge.vault.deposit).
func (c *NATSClient) Publish(subjectSuffix string, data []byte) error {
	subject := fmt.Sprintf("%s.%s", c.subjectPrefix, subjectSuffix)
	if err := c.conn.Publish(subject, data); err != nil {
		metrics.NATSPublishFailures.WithLabelValues(subject).Inc()
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	metrics.NATSMessagesPublished.WithLabelValues(subject).Inc()
	return nil
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// GetConnection returns the underlying NATS connection.
func (c *NATSClient) GetConnection() *nats.Conn {
	return c.conn
}

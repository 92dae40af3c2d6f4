package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lucifer1017/yieldforge/internal/clients"
	"github.com/lucifer1017/yieldforge/internal/ledger"
	"github.com/lucifer1017/yieldforge/internal/models"
	"github.com/lucifer1017/yieldforge/internal/repository"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Pusher fans an event out to connected websocket subscribers.
type Pusher interface {
	PushEvent(user, subject string, payload []byte)
}

// LedgerEventSink receives events from the ledger core and forwards them to
// NATS, the event history table, and websocket subscribers. The ledger emits
// while holding its locks, so Publish only enqueues; a worker goroutine does
// the slow work.
type LedgerEventSink struct {
	nats   *clients.NATSClient
	repo   repository.LedgerEventRepository
	push   Pusher
	logger *logrus.Logger

	queue chan ledger.Event
	done  chan struct{}
}

// NewLedgerEventSink creates the sink. Any of nats, repo, push may be nil;
// the corresponding output is skipped.
func NewLedgerEventSink(nats *clients.NATSClient, repo repository.LedgerEventRepository, push Pusher, logger *logrus.Logger) *LedgerEventSink {
	return &LedgerEventSink{
		nats:   nats,
		repo:   repo,
		push:   push,
		logger: logger,
		queue:  make(chan ledger.Event, 1024),
		done:   make(chan struct{}),
	}
}

// SetPusher attaches the websocket fan-out target. Called once during
// startup, before Start.
func (s *LedgerEventSink) SetPusher(push Pusher) {
	s.push = push
}

// Publish enqueues the event without blocking. A full queue drops the event
// with a warning; the ledger itself remains the source of truth.
func (s *LedgerEventSink) Publish(evt ledger.Event) {
	select {
	case s.queue <- evt:
	default:
		s.logger.WithField("subject", evt.EventType()).Warn("Event queue full, dropping event")
	}
}

// Start runs the forwarding worker until Stop is called.
func (s *LedgerEventSink) Start() {
	go func() {
		for {
			select {
			case evt := <-s.queue:
				s.forward(evt)
			case <-s.done:
				// Drain what is already queued before exiting.
				for {
					select {
					case evt := <-s.queue:
						s.forward(evt)
					default:
						return
					}
				}
			}
		}
	}()
	s.logger.Info("Ledger event sink started")
}

// Stop signals the worker to drain and exit.
func (s *LedgerEventSink) Stop() {
	close(s.done)
}

func (s *LedgerEventSink) forward(evt ledger.Event) {
	subject := evt.EventType()

	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
		return
	}

	user := extractUser(payload)

	if s.nats != nil {
		if err := s.nats.Publish(subject, payload); err != nil {
			s.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event to NATS")
		}
	}

	if s.repo != nil {
		record := &models.LedgerEventRecord{
			EventKey:  eventKey(subject, payload),
			Subject:   subject,
			User:      user,
			Payload:   string(payload),
			EmittedAt: time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, record); err != nil {
			s.logger.WithError(err).WithField("subject", subject).Warn("Failed to persist event")
		}
		cancel()
	}

	if s.push != nil {
		s.push.PushEvent(user, subject, payload)
	}
}

// eventKey derives the dedupe key: keccak over subject and payload.
func eventKey(subject string, payload []byte) string {
	return crypto.Keccak256Hash([]byte(subject), payload).Hex()
}

// extractUser pulls the user address out of the serialized event, if the
// event carries one.
func extractUser(payload []byte) string {
	var probe struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.User
}

package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lucifer1017/yieldforge/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of the upgrade.
		return true
	},
}

// Connection is one live websocket session bound to a user address.
type Connection struct {
	ID          string
	UserAddress string
	Conn        *websocket.Conn
	Send        chan []byte
	LastPing    time.Time
}

// PushMessage is the envelope delivered to clients.
type PushMessage struct {
	Type        string          `json:"type"`
	Timestamp   string          `json:"timestamp"`
	MessageID   string          `json:"message_id"`
	UserAddress string          `json:"user_address,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// WebSocketPushService fans ledger events out to connected clients. Events
// carrying a user address go to that user's connections only; events without
// one are broadcast.
type WebSocketPushService struct {
	connections map[string]*Connection
	userConns   map[string][]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	mutex       sync.RWMutex
	logger      *logrus.Logger
}

func NewWebSocketPushService(logger *logrus.Logger) *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		userConns:   make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger,
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.deliver(message)
		}
	}
}

// PushEvent satisfies the event sink's push target. subject is the NATS
// subject suffix of the originating ledger event; an empty user broadcasts.
func (s *WebSocketPushService) PushEvent(user, subject string, payload []byte) {
	message := PushMessage{
		Type:        subject,
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageID:   generateMessageID(),
		UserAddress: user,
		Data:        payload,
	}

	select {
	case s.hub <- message:
	default:
		s.logger.WithField("subject", subject).Warn("Push hub full, dropping event")
	}
}

// HandleWebSocket upgrades the request and runs the read and write pumps
// until the client disconnects.
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, userAddress string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	connection := &Connection{
		ID:          generateConnectionID(),
		UserAddress: userAddress,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		LastPing:    time.Now(),
	}

	s.register <- connection

	go s.writePump(connection)
	go s.readPump(connection)
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.userConns[conn.UserAddress] = append(s.userConns[conn.UserAddress], conn)
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	s.logger.WithFields(logrus.Fields{
		"user":    conn.UserAddress,
		"conn_id": conn.ID,
	}).Info("WebSocket connection registered")

	confirm, _ := json.Marshal(map[string]string{
		"connection_id": conn.ID,
		"user_address":  conn.UserAddress,
	})
	msg := PushMessage{
		Type:        "connection_established",
		Timestamp:   time.Now().Format(time.RFC3339),
		MessageID:   generateMessageID(),
		UserAddress: conn.UserAddress,
		Data:        confirm,
	}
	s.sendToConnection(conn, msg)
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.connections[conn.ID]; !exists {
		return
	}
	delete(s.connections, conn.ID)

	userConns := s.userConns[conn.UserAddress]
	for i, c := range userConns {
		if c.ID == conn.ID {
			s.userConns[conn.UserAddress] = append(userConns[:i], userConns[i+1:]...)
			break
		}
	}
	if len(s.userConns[conn.UserAddress]) == 0 {
		delete(s.userConns, conn.UserAddress)
	}

	close(conn.Send)
	conn.Conn.Close()
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	s.logger.WithFields(logrus.Fields{
		"user":    conn.UserAddress,
		"conn_id": conn.ID,
	}).Info("WebSocket connection unregistered")
}

func (s *WebSocketPushService) deliver(message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal push message")
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	targets := s.userConns[message.UserAddress]
	if message.UserAddress == "" {
		targets = make([]*Connection, 0, len(s.connections))
		for _, conn := range s.connections {
			targets = append(targets, conn)
		}
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			s.logger.WithField("conn_id", conn.ID).Warn("Send buffer full, dropping message")
		}
	}
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

func (s *WebSocketPushService) writePump(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) readPump(conn *Connection) {
	defer func() {
		s.unregister <- conn
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}

// ActiveConnections reports the number of live sessions.
func (s *WebSocketPushService) ActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

// UserConnections reports the number of live sessions for one user.
func (s *WebSocketPushService) UserConnections(userAddress string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.userConns[userAddress])
}

func generateConnectionID() string {
	return fmt.Sprintf("conn_%d", time.Now().UnixNano())
}

func generateMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}

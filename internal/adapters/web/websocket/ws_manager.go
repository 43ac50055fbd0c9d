package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/airwarden/internal/core/domain"
	"github.com/lcalzada-xor/airwarden/internal/core/ports"
)

// DefaultStatusInterval is how often the status snapshot is pushed.
const DefaultStatusInterval = 2 * time.Second

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header and those served from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	log.Printf("WebSocket: Rejected origin: %s", origin)
	return false
}

// WSMessage is the envelope sent to feed subscribers.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSManager fans events out to connected websocket clients. Clients are
// listeners only; anything they send is discarded.
type WSManager struct {
	Service  ports.StatusService
	Interval time.Duration
	Clients  map[*ws.Conn]struct{}
	mu       sync.Mutex
}

func NewWSManager(service ports.StatusService) *WSManager {
	return &WSManager{
		Service:  service,
		Interval: DefaultStatusInterval,
		Clients:  make(map[*ws.Conn]struct{}),
	}
}

// Start pushes periodic status snapshots until ctx is done.
func (m *WSManager) Start(ctx context.Context) {
	go m.processAndBroadcast(ctx)
}

func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}

	m.mu.Lock()
	m.Clients[conn] = struct{}{}
	m.mu.Unlock()

	log.Printf("WebSocket connected: %s", r.RemoteAddr)

	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.Clients, conn)
			m.mu.Unlock()
			log.Printf("WebSocket disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// ClientCount returns the number of connected subscribers.
func (m *WSManager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Clients)
}

func (m *WSManager) processAndBroadcast(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.ClientCount() == 0 || m.Service == nil {
				continue
			}
			m.broadcastMessage(WSMessage{
				Type:    "status",
				Payload: m.Service.Status(ctx),
			})
		}
	}
}

// BroadcastScanEvent sends an AP or client sighting.
func (m *WSManager) BroadcastScanEvent(ev domain.ScanEvent) {
	m.broadcastMessage(WSMessage{
		Type:    "scan." + string(ev.Type),
		Payload: ev,
	})
}

// BroadcastCardEvent sends an adapter add/remove/role change.
func (m *WSManager) BroadcastCardEvent(ev domain.CardEvent) {
	m.broadcastMessage(WSMessage{
		Type:    "card." + string(ev.Type),
		Payload: ev,
	})
}

// BroadcastAttackEvent sends a finished queue item.
func (m *WSManager) BroadcastAttackEvent(ev domain.AttackEvent) {
	m.broadcastMessage(WSMessage{
		Type:    "attack." + string(ev.Item.Status),
		Payload: ev,
	})
}

func (m *WSManager) broadcastMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Println("JSON marshal error:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.Clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			conn.Close()
			delete(m.Clients, conn)
		}
	}
}

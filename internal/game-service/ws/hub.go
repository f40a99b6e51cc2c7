package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/aviator-game-core/pkg/contracts/events"
)

// ClientMsg é a mensagem aceita do cliente; hoje só "ping"
type ClientMsg struct {
	Type string `json:"type"`
}

// ServerMsg envelopa o que o hub envia
type ServerMsg struct {
	Type  string              `json:"type"` // round | pong
	Round *events.RoundUpdate `json:"round,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla aceita um único escritor por conexão
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

const writeWait = 2 * time.Second

// Hub mantém as conexões WebSocket e repassa cada atualização de rodada para todas.
// Snapshot, quando definido, é enviado assim que o cliente conecta.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	Snapshot func() (events.RoundUpdate, bool)

	mu      sync.RWMutex
	clients map[*client]struct{}

	updates chan events.RoundUpdate
}

const updateBuffer = 64

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		clients:  make(map[*client]struct{}),
		updates:  make(chan events.RoundUpdate, updateBuffer),
	}
}

// Enqueue agenda a atualização para Run sem bloquear quem chama.
// Com o buffer cheio a atualização mais antiga é descartada; o cliente
// só precisa do estado mais recente.
func (h *Hub) Enqueue(u events.RoundUpdate) {
	for {
		select {
		case h.updates <- u:
			return
		default:
		}
		select {
		case old := <-h.updates:
			h.log.Debug("ws update dropped", zap.String("roundId", old.RoundID))
		default:
		}
	}
}

// Run entrega as atualizações enfileiradas, em ordem, até ctx ser cancelado
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-h.updates:
			h.Broadcast(u)
		}
	}
}

// Count devolve o número de conexões ativas
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	if h.Snapshot != nil {
		if u, ok := h.Snapshot(); ok {
			b, _ := json.Marshal(ServerMsg{Type: "round", Round: &u})
			if err := c.write(b); err != nil {
				return
			}
		}
	}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			b, _ := json.Marshal(ServerMsg{Type: "pong"})
			_ = c.write(b)
		}
	}
}

// Broadcast envia a atualização para todos os clientes conectados
func (h *Hub) Broadcast(u events.RoundUpdate) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(ServerMsg{Type: "round", Round: &u})
	for _, c := range conns {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

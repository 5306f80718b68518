// Package feed streams exchange events to WebSocket clients. A client
// subscribes to one or more patients and receives every export and import
// completion for them as a JSON text frame.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/familyhealth/healthrecord/internal/platform/events"
)

const (
	sendBuffer     = 64
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ClientMessage is what a client sends to change its subscriptions.
type ClientMessage struct {
	Action   string   `json:"action"`
	Patients []string `json:"patients"`
}

// Client is one connected feed consumer.
type Client struct {
	ID   string
	Send chan []byte

	patients map[string]struct{}
}

func NewClient() *Client {
	return &Client{
		ID:       uuid.NewString(),
		Send:     make(chan []byte, sendBuffer),
		patients: make(map[string]struct{}),
	}
}

// Hub tracks clients by patient and implements events.Publisher.
type Hub struct {
	mu        sync.RWMutex
	byPatient map[string]map[*Client]struct{}
	all       map[*Client]struct{}
	log       zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		byPatient: make(map[string]map[*Client]struct{}),
		all:       make(map[*Client]struct{}),
		log:       log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.all[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister drops every subscription of c and closes its Send channel.
// Calling it twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	for pid := range c.patients {
		h.remove(pid, c)
	}
	delete(h.all, c)
	close(c.Send)
}

// Subscribe adds patient feeds to c. Ids that are not UUIDs are skipped and
// returned.
func (h *Hub) Subscribe(c *Client, patients []string) (rejected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, raw := range patients {
		id, err := uuid.Parse(raw)
		if err != nil {
			rejected = append(rejected, raw)
			continue
		}
		pid := id.String()
		if h.byPatient[pid] == nil {
			h.byPatient[pid] = make(map[*Client]struct{})
		}
		h.byPatient[pid][c] = struct{}{}
		c.patients[pid] = struct{}{}
	}
	return rejected
}

func (h *Hub) Unsubscribe(c *Client, patients []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, raw := range patients {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		pid := id.String()
		h.remove(pid, c)
		delete(c.patients, pid)
	}
}

// remove must be called with mu held.
func (h *Hub) remove(pid string, c *Client) {
	subs, ok := h.byPatient[pid]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.byPatient, pid)
	}
}

func (h *Hub) Process(c *Client, msg ClientMessage) {
	switch msg.Action {
	case ActionSubscribe:
		if rejected := h.Subscribe(c, msg.Patients); len(rejected) > 0 {
			h.log.Debug().Str("client_id", c.ID).Strs("patients", rejected).Msg("feed subscription rejected")
		}
	case ActionUnsubscribe:
		h.Unsubscribe(c, msg.Patients)
	}
}

// Publish sends e to every client subscribed to its patient. A client whose
// buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.byPatient[e.PatientID] {
		select {
		case c.Send <- data:
		default:
			h.log.Warn().Str("client_id", c.ID).Str("event", e.Type).Msg("feed client too slow, event dropped")
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// Subscribers returns the number of clients following patientID.
func (h *Hub) Subscribers(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPatient[patientID])
}

// Handler upgrades HTTP requests to feed connections.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts connections from the given browser origins. Requests
// without an Origin header are always accepted; "*" accepts any origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/exchange/feed", h.Connect)
}

// Connect handles GET /api/v1/exchange/feed. Each patient query parameter
// is an initial subscription.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		return nil
	}

	client := NewClient()
	h.hub.Register(client)
	h.hub.Subscribe(client, c.QueryParams()["patient"])

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.hub.Process(client, msg)
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

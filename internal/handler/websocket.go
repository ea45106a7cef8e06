package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sixinarow/internal/game"
	"sixinarow/internal/match"
	"sixinarow/internal/player"
	"sixinarow/internal/telemetry"
)

const (
	maxFrameBytes          = 4096
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Engine is the match surface the websocket channel drives.
type Engine interface {
	BindConnection(id, credential, conn string) (game.Snapshot, bool)
	PlaceMove(id, credential string, column int) ([]match.Update, error)
	LeaveSession(id, credential string) ([]match.Update, error)
	HandleConnectionDrop(conn string) []match.Update
}

type WebSocketHandler struct {
	Engine   Engine
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	players  map[string]*player.Player
	tracer   trace.Tracer

	// pingPeriod paces keepalive pings; a connection that has sent neither
	// a frame nor a pong for idleTimeout is closed.
	pingPeriod  time.Duration
	idleTimeout time.Duration
}

// NewWebSocketHandler accepts upgrades from allowedOrigins, or from any
// origin when the list is empty. Engine must be set before serving.
func NewWebSocketHandler(allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		players:     make(map[string]*player.Player),
		tracer:      telemetry.Tracer("websocket"),
		pingPeriod:  pingPeriod,
		idleTimeout: pongWait,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		EnableCompression: true,
		CheckOrigin:       originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	p := player.New(conn)
	h.register(p)
	defer h.HandleDisconnect(p)

	stop := make(chan struct{})
	defer close(stop)
	go h.keepAlive(p, stop)

	h.HandleMessages(p)
}

func (h *WebSocketHandler) HandleMessages(p *player.Player) {
	conn := p.Conn
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		p.UpdateActivity()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read from %s: %v", p.ID, err)
			}
			return
		}
		p.UpdateActivity()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			h.sendError(p, "invalid frame")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			h.sendError(p, "rate limit exceeded")
			return
		}

		h.ProcessMessage(p, frame)
	}
}

func (h *WebSocketHandler) ProcessMessage(p *player.Player, frame wsFrame) {
	_, span := h.tracer.Start(context.Background(), "ws."+frame.Type,
		trace.WithAttributes(attribute.String("ws.conn", p.ID)))
	defer span.End()

	switch frame.Type {
	case frameConnect:
		h.HandleConnect(p, frame.Payload)
	case framePlayMove:
		h.HandleMove(p, frame.Payload)
	case frameDisconnect:
		h.HandleLeave(p, frame.Payload)
	default:
		h.sendError(p, "unsupported frame type")
	}
}

// HandleDisconnect forgets p and lets the engine settle whatever it was
// seated in. The engine publishes the outcome to the remaining seat.
func (h *WebSocketHandler) HandleDisconnect(p *player.Player) {
	h.unregister(p)
	if err := p.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("close %s: %v", p.ID, err)
	}
	h.Engine.HandleConnectionDrop(p.ID)
}

// keepAlive pings p until stop closes, and closes p once it has been silent
// for longer than the idle timeout. The read loop then ends the session.
func (h *WebSocketHandler) keepAlive(p *player.Player, stop <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if idle := p.Idle(); idle > h.idleTimeout {
				log.Printf("closing %s: idle for %s", p.ID, idle.Round(time.Millisecond))
				_ = p.Close()
				return
			}
			if err := p.Ping(); err != nil {
				return
			}
		}
	}
}

// Broadcast delivers an engine update. It is called with the session locked.
func (h *WebSocketHandler) Broadcast(u match.Update) {
	h.Deliver([]match.Update{u})
}

// Deliver sends each update to the connections it names. Recipients that are
// already gone are skipped.
func (h *WebSocketHandler) Deliver(updates []match.Update) {
	for _, u := range updates {
		frame := encode(u)
		for _, id := range u.Recipients {
			p := h.lookup(id)
			if p == nil {
				continue
			}
			if err := p.SendJSON(frame); err != nil {
				log.Printf("write to %s failed: %v", id, err)
			}
		}
	}
}

// Connections reports how many sockets are open.
func (h *WebSocketHandler) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.players)
}

func (h *WebSocketHandler) register(p *player.Player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[p.ID] = p
}

func (h *WebSocketHandler) unregister(p *player.Player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.players, p.ID)
}

func (h *WebSocketHandler) lookup(id string) *player.Player {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.players[id]
}

package player

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Player is one websocket connection. Its ID is the connection ref the match
// engine binds to seats.
type Player struct {
	ID       string
	Conn     *websocket.Conn
	LastSeen time.Time
	mu       sync.Mutex
}

func New(conn *websocket.Conn) *Player {
	return &Player{
		ID:       "conn-" + uuid.NewString(),
		Conn:     conn,
		LastSeen: time.Now(),
	}
}

func (p *Player) UpdateActivity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastSeen = time.Now()
}

// Idle reports how long ago the last frame arrived.
func (p *Player) Idle() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.LastSeen)
}

// SendJSON writes v as one text frame. Writes are serialized per connection.
func (p *Player) SendJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.Conn.WriteJSON(v)
}

// Ping sends a keepalive control frame.
func (p *Player) Ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Conn.Close()
}

package hub

import (
	"context"
	"crypto/subtle"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"sixinarow/internal/game"
)

// Options tunes store capacity and the maintenance sweep.
type Options struct {
	MaxGames      int
	FinishedGrace time.Duration
	WaitingTTL    time.Duration
	Clock         clock.Clock
}

// Listing is one entry of the joinable-games directory.
type Listing struct {
	ID          string `json:"id"`
	CreatorName string `json:"creatorName"`
	TimeLimit   int    `json:"timeLimit"`
}

type credentials [game.MaxPlayers]string

// Hub owns every live session and the secrets bound to their seats. It never
// takes a game's lock while holding its own.
type Hub struct {
	games         map[string]*game.Game
	credentials   map[string]*credentials
	mu            sync.RWMutex
	maxGames      int
	finishedGrace time.Duration
	waitingTTL    time.Duration
	clock         clock.Clock
}

func NewHub(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Hub{
		games:         make(map[string]*game.Game),
		credentials:   make(map[string]*credentials),
		maxGames:      opts.MaxGames,
		finishedGrace: opts.FinishedGrace,
		waitingTTL:    opts.WaitingTTL,
		clock:         opts.Clock,
	}
}

// CreateSession opens a game in the waiting state and returns the creator's
// credential.
func (h *Hub) CreateSession(creatorName string, timeLimit int) (string, string, *game.Game, error) {
	creatorName = strings.TrimSpace(creatorName)
	if creatorName == "" {
		return "", "", nil, game.NewError(game.CodeValidation, "player name is required")
	}
	if timeLimit <= 0 {
		return "", "", nil, game.NewError(game.CodeValidation, "time limit must be positive")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxGames > 0 && len(h.games) >= h.maxGames {
		return "", "", nil, game.ErrCapacity
	}

	id := uuid.NewString()
	for h.games[id] != nil {
		id = uuid.NewString()
	}
	secret := uuid.NewString()

	g := game.NewGame(id, creatorName, timeLimit, h.clock.Now())
	h.games[id] = g
	h.credentials[id] = &credentials{secret}

	log.Printf("game %s created by %q (%ds)", id, creatorName, timeLimit)
	return id, secret, g, nil
}

// JoinSession seats joinerName as player 2 and starts the match.
func (h *Hub) JoinSession(id, joinerName string) (string, *game.Game, game.Seat, error) {
	joinerName = strings.TrimSpace(joinerName)
	if joinerName == "" {
		return "", nil, game.NoSeat, game.NewError(game.CodeValidation, "player name is required")
	}

	g := h.Get(id)
	if g == nil {
		return "", nil, game.NoSeat, game.ErrNotFound
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	creds, ok := h.credentials[id]
	if !ok {
		return "", nil, game.NoSeat, game.ErrNotFound
	}
	if err := g.State.Join(joinerName, h.clock.Now()); err != nil {
		return "", nil, game.NoSeat, err
	}
	secret := uuid.NewString()
	creds[game.Seat2-1] = secret

	log.Printf("game %s joined by %q", id, joinerName)
	return secret, g, game.Seat2, nil
}

// ListJoinable returns the waiting games, oldest first. It is recomputed on
// every call.
func (h *Hub) ListJoinable() []Listing {
	games := h.Sessions()
	sort.Slice(games, func(i, j int) bool {
		return games[i].CreatedAt().Before(games[j].CreatedAt())
	})

	out := make([]Listing, 0, len(games))
	for _, g := range games {
		g.Mu.Lock()
		if g.State.Status == game.StatusWaiting {
			out = append(out, Listing{
				ID:          g.ID,
				CreatorName: g.State.Seats[0].Name,
				TimeLimit:   g.State.TimeLimit,
			})
		}
		g.Mu.Unlock()
	}
	return out
}

// ResolveSeat maps a presented credential to its seat, or NoSeat.
func (h *Hub) ResolveSeat(id, credential string) game.Seat {
	if credential == "" {
		return game.NoSeat
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	creds, ok := h.credentials[id]
	if !ok {
		return game.NoSeat
	}
	for i, secret := range creds {
		if secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(credential)) == 1 {
			return game.Seat(i + 1)
		}
	}
	return game.NoSeat
}

func (h *Hub) Get(id string) *game.Game {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.games[id]
}

// Sessions returns the live games at the time of the call.
func (h *Hub) Sessions() []*game.Game {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*game.Game, 0, len(h.games))
	for _, g := range h.games {
		out = append(out, g)
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games)
}

// DeleteSession drops a game and its credentials. Unknown ids are ignored.
func (h *Hub) DeleteSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.games[id]; !ok {
		return
	}
	delete(h.games, id)
	delete(h.credentials, id)
	log.Printf("game %s deleted", id)
}

// MaintainGames sweeps expired games every interval until ctx is done.
func (h *Hub) MaintainGames(ctx context.Context, interval time.Duration) {
	ticker := h.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CleanupExpiredGames()
		}
	}
}

// CleanupExpiredGames removes waiting games past the waiting TTL and ended
// games past the finished grace period. It returns how many were removed.
func (h *Hub) CleanupExpiredGames() int {
	now := h.clock.Now()
	removed := 0
	for _, g := range h.Sessions() {
		g.Mu.Lock()
		expired := g.IsExpired(now, h.waitingTTL, h.finishedGrace)
		if expired {
			h.DeleteSession(g.ID)
			removed++
		}
		g.Mu.Unlock()
	}
	return removed
}

// Stop drops every game.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.games = make(map[string]*game.Game)
	h.credentials = make(map[string]*credentials)
}

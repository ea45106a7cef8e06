package game

import (
	"sync"
	"time"
)

// Game is one live session. Mu guards State and must be held for every read
// or write of it; the store lock may be taken while Mu is held, never the
// other way round.
type Game struct {
	ID        string
	Mu        sync.Mutex
	State     State
	createdAt time.Time
}

func NewGame(id, creator string, timeLimit int, now time.Time) *Game {
	return &Game{
		ID:        id,
		State:     NewState(creator, timeLimit, now),
		createdAt: now,
	}
}

func (g *Game) CreatedAt() time.Time { return g.createdAt }

// IsExpired reports whether the maintenance sweep may drop the game: a
// waiting game older than waitingTTL, or an ended one past finishedGrace.
// Caller holds Mu.
func (g *Game) IsExpired(now time.Time, waitingTTL, finishedGrace time.Duration) bool {
	switch g.State.Status {
	case StatusWaiting:
		return waitingTTL > 0 && now.Sub(g.createdAt) > waitingTTL
	case StatusEnded:
		return now.Sub(g.State.EndedAt) > finishedGrace
	}
	return false
}

// Bind attaches a transport connection to seat. Caller holds Mu.
func (g *Game) Bind(seat Seat, conn string) {
	if s := g.State.Seat(seat); s != nil {
		s.Conn = conn
	}
}

// SeatFor returns the seat bound to conn, or NoSeat. Caller holds Mu.
func (g *Game) SeatFor(conn string) Seat {
	if conn == "" {
		return NoSeat
	}
	for i := range g.State.Seats {
		if g.State.Seats[i].Conn == conn {
			return Seat(i + 1)
		}
	}
	return NoSeat
}

// Recipients lists the connections currently bound to either seat. Caller
// holds Mu.
func (g *Game) Recipients() []string {
	out := make([]string, 0, MaxPlayers)
	for _, s := range g.State.Seats {
		if s.Conn != "" {
			out = append(out, s.Conn)
		}
	}
	return out
}

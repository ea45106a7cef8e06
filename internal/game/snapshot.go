package game

import (
	"bytes"
	"strconv"
)

// Snapshot is the broadcast view of a session. Credentials and connection
// refs never appear in it.
type Snapshot struct {
	ID            string                `json:"id"`
	Board         Board                 `json:"board"`
	CurrentPlayer Seat                  `json:"currentPlayer"`
	Players       map[string]PlayerView `json:"players"`
	TimeLimit     int                   `json:"timeLimit"`
	MovesLeft     int                   `json:"movesLeft"`
	Status        Status                `json:"status"`
	LastMoveTime  int64                 `json:"lastMoveTime"`
	Winner        *Seat                 `json:"winner"`
}

type PlayerView struct {
	Name          *string `json:"name"`
	TimeRemaining int     `json:"timeRemaining"`
}

// Snapshot copies the current state. Caller holds Mu.
func (g *Game) Snapshot() Snapshot {
	st := &g.State
	snap := Snapshot{
		ID:            g.ID,
		Board:         st.Board,
		CurrentPlayer: st.CurrentPlayer,
		Players:       make(map[string]PlayerView, MaxPlayers),
		TimeLimit:     st.TimeLimit,
		MovesLeft:     st.MovesLeft,
		Status:        st.Status,
		LastMoveTime:  st.LastTick.UnixMilli(),
	}
	for i, s := range st.Seats {
		view := PlayerView{TimeRemaining: s.TimeRemaining}
		if s.Name != "" {
			name := s.Name
			view.Name = &name
		}
		snap.Players[strconv.Itoa(i+1)] = view
	}
	if st.Status == StatusEnded {
		w := st.Winner
		snap.Winner = &w
	}
	return snap
}

// MarshalJSON renders empty cells as null, matching the browser client.
func (b Board) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(BoardSize * BoardSize * 5)
	buf.WriteByte('[')
	for r := range b {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for c, cell := range b[r] {
			if c > 0 {
				buf.WriteByte(',')
			}
			if cell == NoSeat {
				buf.WriteString("null")
			} else {
				buf.WriteString(strconv.Itoa(int(cell)))
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

package game

import "time"

const (
	BoardSize    = 15
	WinLength    = 6
	MovesPerTurn = 3
	MaxPlayers   = 2
)

// Seat identifies one of the two player slots. The zero value doubles as the
// empty board cell.
type Seat int

const (
	NoSeat Seat = 0
	Seat1  Seat = 1
	Seat2  Seat = 2
)

func (s Seat) Valid() bool { return s == Seat1 || s == Seat2 }

// Opponent returns the other seat. NoSeat has no opponent.
func (s Seat) Opponent() Seat {
	switch s {
	case Seat1:
		return Seat2
	case Seat2:
		return Seat1
	}
	return NoSeat
}

type Status int

const (
	StatusWaiting Status = iota
	StatusInProgress
	StatusEnded
)

// String returns the wire name the browser client expects.
func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInProgress:
		return "playing"
	case StatusEnded:
		return "ended"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Board is indexed [row][col]; row 0 is the top of the grid.
type Board [BoardSize][BoardSize]Seat

type SeatState struct {
	Name          string
	TimeRemaining int
	Conn          string
}

// State is the mutable part of a session. Callers serialize access through
// the owning Game's mutex.
type State struct {
	Board         Board
	CurrentPlayer Seat
	MovesLeft     int
	Seats         [MaxPlayers]SeatState
	TimeLimit     int
	Status        Status
	LastTick      time.Time
	Winner        Seat
	EndedAt       time.Time
}

func NewState(creator string, timeLimit int, now time.Time) State {
	s := State{
		CurrentPlayer: Seat1,
		MovesLeft:     MovesPerTurn,
		TimeLimit:     timeLimit,
		Status:        StatusWaiting,
		LastTick:      now,
	}
	s.Seats[0] = SeatState{Name: creator, TimeRemaining: timeLimit}
	s.Seats[1] = SeatState{TimeRemaining: timeLimit}
	return s
}

// Seat returns the slot for n, or nil when n is not a real seat.
func (s *State) Seat(n Seat) *SeatState {
	if !n.Valid() {
		return nil
	}
	return &s.Seats[n-1]
}

func (s *State) end(winner Seat, now time.Time) {
	s.Status = StatusEnded
	s.Winner = winner
	s.EndedAt = now
}

package game

import "time"

// Placement describes the outcome of a successful move.
type Placement struct {
	Row, Col   int
	Seat       Seat
	Won        bool
	Drawn      bool
	TurnPassed bool
}

// axes are the four line directions; each is walked both ways from a stone.
var axes = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// Drop returns the lowest empty row of col without modifying the board.
func (b *Board) Drop(col int) (int, error) {
	if col < 0 || col >= BoardSize {
		return -1, ErrOutOfRange
	}
	for row := BoardSize - 1; row >= 0; row-- {
		if b[row][col] == NoSeat {
			return row, nil
		}
	}
	return -1, ErrColumnFull
}

// run counts stones matching seat stepping (dr, dc) from (row, col),
// excluding the starting cell.
func (b *Board) run(row, col, dr, dc int, seat Seat) int {
	n := 0
	for r, c := row+dr, col+dc; r >= 0 && r < BoardSize && c >= 0 && c < BoardSize && b[r][c] == seat; r, c = r+dr, c+dc {
		n++
	}
	return n
}

// LongestLine returns the longest line through (row, col) made of the stone
// at that cell.
func (b *Board) LongestLine(row, col int) int {
	seat := b[row][col]
	if seat == NoSeat {
		return 0
	}
	longest := 0
	for _, d := range axes {
		n := 1 + b.run(row, col, d[0], d[1], seat) + b.run(row, col, -d[0], -d[1], seat)
		if n > longest {
			longest = n
		}
	}
	return longest
}

// Wins reports whether the stone at (row, col) completes WinLength or more.
func (b *Board) Wins(row, col int) bool {
	return b.LongestLine(row, col) >= WinLength
}

func (b *Board) Full() bool {
	for col := 0; col < BoardSize; col++ {
		if b[0][col] == NoSeat {
			return false
		}
	}
	return true
}

// Join seats the opponent and starts the match.
func (s *State) Join(name string, now time.Time) error {
	if s.Status != StatusWaiting {
		return NewError(CodeInvalidState, "game already started or ended")
	}
	s.Seats[1].Name = name
	s.Status = StatusInProgress
	s.LastTick = now
	return nil
}

// ProcessMove validates and applies a drop into col by seat. On error the
// state is untouched.
func (s *State) ProcessMove(seat Seat, col int, now time.Time) (Placement, error) {
	if s.Status != StatusInProgress {
		return Placement{}, ErrInvalidState
	}
	if seat != s.CurrentPlayer {
		return Placement{}, ErrNotYourTurn
	}
	row, err := s.Board.Drop(col)
	if err != nil {
		return Placement{}, err
	}

	s.Board[row][col] = seat
	s.MovesLeft--
	p := Placement{Row: row, Col: col, Seat: seat}

	if s.Board.Wins(row, col) {
		s.end(seat, now)
		p.Won = true
		return p, nil
	}

	if s.Board.Full() {
		s.end(drawWinner(s, seat), now)
		p.Drawn = true
		return p, nil
	}

	if s.MovesLeft == 0 {
		s.CurrentPlayer = seat.Opponent()
		s.MovesLeft = MovesPerTurn
		s.LastTick = now
		p.TurnPassed = true
	}
	return p, nil
}

// drawWinner settles a full board: more clock left wins, and on a tie the
// seat that did not fill the last cell wins.
func drawWinner(s *State, last Seat) Seat {
	mine := s.Seat(last).TimeRemaining
	theirs := s.Seat(last.Opponent()).TimeRemaining
	if mine > theirs {
		return last
	}
	return last.Opponent()
}

// Forfeit ends an in-progress match in favour of the other seat. It reports
// false when there was no match to forfeit.
func (s *State) Forfeit(loser Seat, now time.Time) bool {
	if s.Status != StatusInProgress || !loser.Valid() {
		return false
	}
	s.end(loser.Opponent(), now)
	return true
}

// Tick charges one second to the seat holding the turn. It reports whether
// the state changed; a change may also have ended the match on time.
func (s *State) Tick(now time.Time) bool {
	if s.Status != StatusInProgress {
		return false
	}
	clock := s.Seat(s.CurrentPlayer)
	clock.TimeRemaining--
	s.LastTick = now
	if clock.TimeRemaining <= 0 {
		clock.TimeRemaining = 0
		s.end(s.CurrentPlayer.Opponent(), now)
	}
	return true
}

// Package match runs the rules of live sessions: placements, turn and clock
// accounting, and the ways a match can end.
package match

import (
	"log"
	"sync"

	"github.com/benbjohnson/clock"

	"sixinarow/internal/game"
)

type UpdateKind int

const (
	// UpdateState carries a full snapshot of the session.
	UpdateState UpdateKind = iota
	// UpdateSeatDisconnected names a seat whose connection dropped.
	UpdateSeatDisconnected
)

// Update is something the transport must deliver to Recipients.
type Update struct {
	Kind       UpdateKind
	SessionID  string
	State      game.Snapshot
	Seat       game.Seat
	Recipients []string
}

// Broadcaster delivers every update the engine produces: the results of
// calls as well as clock ticks. Broadcast runs with the session locked, so
// updates of one session reach it in the order they happened. It must not
// call back into the Engine.
type Broadcaster interface {
	Broadcast(Update)
}

// Store is the part of the session store the engine relies on.
type Store interface {
	Get(id string) *game.Game
	ResolveSeat(id, credential string) game.Seat
	Sessions() []*game.Game
	DeleteSession(id string)
}

type Engine struct {
	store  Store
	clock  clock.Clock
	out    Broadcaster
	mu     sync.Mutex
	clocks map[string]*countdown
}

func NewEngine(store Store, clk clock.Clock, out Broadcaster) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		store:  store,
		clock:  clk,
		out:    out,
		clocks: make(map[string]*countdown),
	}
}

// lock resolves id and credential and returns the game locked. The caller
// must unlock it.
func (e *Engine) lock(id, credential string) (*game.Game, game.Seat, error) {
	g := e.store.Get(id)
	if g == nil {
		return nil, game.NoSeat, game.ErrNotFound
	}
	seat := e.store.ResolveSeat(id, credential)
	if seat == game.NoSeat {
		return nil, game.NoSeat, game.NewError(game.CodeNotFound, "invalid password")
	}
	g.Mu.Lock()
	if e.store.Get(id) != g {
		g.Mu.Unlock()
		return nil, game.NoSeat, game.ErrNotFound
	}
	return g, seat, nil
}

// BindConnection attaches conn to the seat proven by credential and starts the
// session clock if the match is running. Unresolvable credentials are ignored
// and reported as false.
func (e *Engine) BindConnection(id, credential, conn string) (game.Snapshot, bool) {
	g, seat, err := e.lock(id, credential)
	if err != nil {
		return game.Snapshot{}, false
	}
	defer g.Mu.Unlock()

	g.Bind(seat, conn)
	if g.State.Status == game.StatusInProgress {
		e.startClock(id)
	}
	return g.Snapshot(), true
}

// PlaceMove drops a stone for the seat proven by credential. The returned
// updates have already been published.
func (e *Engine) PlaceMove(id, credential string, column int) ([]Update, error) {
	g, seat, err := e.lock(id, credential)
	if err != nil {
		return nil, err
	}
	defer g.Mu.Unlock()

	p, err := g.State.ProcessMove(seat, column, e.clock.Now())
	if err != nil {
		return nil, err
	}
	if g.State.Status != game.StatusInProgress {
		e.stopClock(id)
		switch {
		case p.Won:
			log.Printf("game %s won by seat %d", id, seat)
		case p.Drawn:
			log.Printf("game %s board full, seat %d wins on time", id, g.State.Winner)
		}
	}
	return e.publish(stateUpdate(g)), nil
}

// LeaveSession removes the session. A running match is forfeited by the
// leaving seat first.
func (e *Engine) LeaveSession(id, credential string) ([]Update, error) {
	g, seat, err := e.lock(id, credential)
	if err != nil {
		return nil, err
	}
	defer g.Mu.Unlock()

	var updates []Update
	if g.State.Forfeit(seat, e.clock.Now()) {
		log.Printf("game %s forfeited by seat %d", id, seat)
		updates = e.publish(stateUpdate(g))
	}
	e.stopClock(id)
	e.store.DeleteSession(id)
	return updates, nil
}

// HandleConnectionDrop resolves an unexpected loss of conn. A running match
// is forfeited by the dropped seat; a waiting game whose creator dropped is
// discarded.
func (e *Engine) HandleConnectionDrop(conn string) []Update {
	var updates []Update
	for _, g := range e.store.Sessions() {
		updates = append(updates, e.dropFrom(g, conn)...)
	}
	return updates
}

func (e *Engine) dropFrom(g *game.Game, conn string) []Update {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	seat := g.SeatFor(conn)
	if seat == game.NoSeat || e.store.Get(g.ID) != g {
		return nil
	}

	switch {
	case g.State.Status == game.StatusInProgress:
		g.State.Forfeit(seat, e.clock.Now())
		g.Bind(seat, "")
		e.stopClock(g.ID)
		e.store.DeleteSession(g.ID)
		log.Printf("game %s ended: seat %d disconnected", g.ID, seat)

		state := stateUpdate(g)
		return e.publish(state, Update{
			Kind:       UpdateSeatDisconnected,
			SessionID:  g.ID,
			Seat:       seat,
			Recipients: state.Recipients,
		})
	case g.State.Status == game.StatusWaiting && seat == game.Seat1:
		e.store.DeleteSession(g.ID)
		log.Printf("game %s discarded: creator disconnected", g.ID)
	}
	return nil
}

// Stop halts every session clock.
func (e *Engine) Stop() {
	e.mu.Lock()
	clocks := e.clocks
	e.clocks = make(map[string]*countdown)
	e.mu.Unlock()

	for _, c := range clocks {
		c.stop()
	}
}

// publish hands updates to the broadcaster. Caller holds the session lock.
func (e *Engine) publish(updates ...Update) []Update {
	if e.out != nil {
		for _, u := range updates {
			e.out.Broadcast(u)
		}
	}
	return updates
}

func stateUpdate(g *game.Game) Update {
	return Update{
		Kind:       UpdateState,
		SessionID:  g.ID,
		State:      g.Snapshot(),
		Recipients: g.Recipients(),
	}
}

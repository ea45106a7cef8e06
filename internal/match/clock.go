package match

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"sixinarow/internal/game"
)

const tickInterval = time.Second

type countdown struct {
	ticker *clock.Ticker
	done   chan struct{}
	once   sync.Once
}

func (c *countdown) stop() {
	c.once.Do(func() { close(c.done) })
}

// startClock begins the per-session countdown unless one is already running.
// The ticker is created before returning so the first interval starts now.
func (e *Engine) startClock(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.clocks[id]; ok {
		return false
	}
	c := &countdown{
		ticker: e.clock.Ticker(tickInterval),
		done:   make(chan struct{}),
	}
	e.clocks[id] = c
	go e.runClock(id, c)
	return true
}

func (e *Engine) stopClock(id string) {
	e.mu.Lock()
	c, ok := e.clocks[id]
	delete(e.clocks, id)
	e.mu.Unlock()

	if ok {
		c.stop()
	}
}

// release stops c and forgets it, unless a newer countdown replaced it.
func (e *Engine) release(id string, c *countdown) {
	e.mu.Lock()
	if e.clocks[id] == c {
		delete(e.clocks, id)
	}
	e.mu.Unlock()
	c.stop()
}

// Running reports whether id has an active countdown.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.clocks[id]
	return ok
}

func (e *Engine) runClock(id string, c *countdown) {
	defer c.ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			if !e.tick(id, c) {
				return
			}
		}
	}
}

// tick charges one second and publishes the result. It re-checks the session
// under its lock every time, so a countdown stopped while waiting for the
// lock never touches the state again.
func (e *Engine) tick(id string, c *countdown) bool {
	g := e.store.Get(id)
	if g == nil {
		e.release(id, c)
		return false
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()

	select {
	case <-c.done:
		return false
	default:
	}
	if e.store.Get(id) != g || !g.State.Tick(e.clock.Now()) {
		e.release(id, c)
		return false
	}

	running := g.State.Status == game.StatusInProgress
	if !running {
		e.release(id, c)
		log.Printf("game %s: seat %d ran out of time", id, g.State.Winner.Opponent())
	}
	e.publish(stateUpdate(g))
	return running
}

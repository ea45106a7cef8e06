package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sixinarow/internal/hub"
)

func (s *server) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(wsFrame{Type: frameType, Payload: mustJSON(payload)}))
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readState(t *testing.T, conn *websocket.Conn) wireState {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, frameGameState, frame.Type, "payload: %s", frame.Payload)
	var st wireState
	require.NoError(t, json.Unmarshal(frame.Payload, &st))
	return st
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, frameError, frame.Type)
	var e errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &e))
	return e.Message
}

type seated struct {
	conn     *websocket.Conn
	id       string
	password string
}

// seatBoth creates and joins a game over HTTP and binds a socket per seat.
func (s *server) seatBoth(t *testing.T, limit int) (seated, seated) {
	t.Helper()
	created := s.create(t, "A", limit)
	joined := s.join(t, created.GameID, "B")

	p1 := seated{conn: s.dial(t), id: created.GameID, password: created.Password}
	sendFrame(t, p1.conn, frameConnect, sessionPayload{GameID: p1.id, Password: p1.password})
	assert.Equal(t, "playing", readState(t, p1.conn).Status)

	p2 := seated{conn: s.dial(t), id: joined.GameID, password: joined.Password}
	sendFrame(t, p2.conn, frameConnect, sessionPayload{GameID: p2.id, Password: p2.password})
	assert.Equal(t, "playing", readState(t, p2.conn).Status)
	return p1, p2
}

func move(t *testing.T, p seated, column int) {
	t.Helper()
	sendFrame(t, p.conn, framePlayMove, movePayload{GameID: p.id, Password: p.password, ColumnIndex: &column})
}

func TestWebSocketPlay(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	p1, p2 := s.seatBoth(t, 300)

	move(t, p1, 7)
	for _, c := range []*websocket.Conn{p1.conn, p2.conn} {
		st := readState(t, c)
		require.NotNil(t, st.Board[14][7])
		assert.Equal(t, 1, *st.Board[14][7])
		assert.Equal(t, 2, st.MovesLeft)
	}

	move(t, p2, 0)
	assert.Equal(t, "not your turn", readError(t, p2.conn))

	move(t, p1, 15)
	assert.Equal(t, "invalid column", readError(t, p1.conn))

	sendFrame(t, p1.conn, framePlayMove, sessionPayload{GameID: p1.id, Password: p1.password})
	assert.Equal(t, "invalid column", readError(t, p1.conn))

	sendFrame(t, p1.conn, framePlayMove, movePayload{GameID: p1.id, Password: "forged", ColumnIndex: new(int)})
	assert.Equal(t, "invalid password", readError(t, p1.conn))
}

func TestWebSocketClockTicks(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	p1, p2 := s.seatBoth(t, 300)

	s.clock.Add(time.Second)
	for _, c := range []*websocket.Conn{p1.conn, p2.conn} {
		st := readState(t, c)
		assert.Equal(t, 299, st.Players["1"].TimeRemaining)
		assert.Equal(t, 300, st.Players["2"].TimeRemaining)
	}
}

func TestWebSocketLeave(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	p1, p2 := s.seatBoth(t, 300)

	sendFrame(t, p2.conn, frameDisconnect, sessionPayload{GameID: p2.id, Password: p2.password})
	for _, c := range []*websocket.Conn{p1.conn, p2.conn} {
		st := readState(t, c)
		assert.Equal(t, "ended", st.Status)
		require.NotNil(t, st.Winner)
		assert.Equal(t, 1, *st.Winner)
	}
	assert.Nil(t, s.store.Get(p1.id))

	sendFrame(t, p1.conn, frameDisconnect, sessionPayload{GameID: p1.id, Password: p1.password})
	assert.Equal(t, "game not found", readError(t, p1.conn))
}

func TestWebSocketDropForfeits(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	p1, p2 := s.seatBoth(t, 300)

	require.NoError(t, p2.conn.Close())

	st := readState(t, p1.conn)
	assert.Equal(t, "ended", st.Status)
	require.NotNil(t, st.Winner)
	assert.Equal(t, 1, *st.Winner)

	frame := readFrame(t, p1.conn)
	require.Equal(t, framePlayerDisconnected, frame.Type)
	assert.JSONEq(t, `{"playerNumber":2}`, string(frame.Payload))

	assert.Eventually(t, func() bool { return s.store.Get(p1.id) == nil }, time.Second, 10*time.Millisecond)
}

func TestWebSocketIdleConnectionClosed(t *testing.T) {
	s := newServer(t, hub.Options{}, nil, func(ws *WebSocketHandler) {
		ws.pingPeriod = 20 * time.Millisecond
		ws.idleTimeout = 100 * time.Millisecond
	})
	p1, p2 := s.seatBoth(t, 300)
	require.Equal(t, 2, s.ws.Connections())

	// p1 keeps reading and so answers pings; p2 goes silent.
	st := readState(t, p1.conn)
	assert.Equal(t, "ended", st.Status)
	require.NotNil(t, st.Winner)
	assert.Equal(t, 1, *st.Winner)

	assert.Eventually(t, func() bool { return s.ws.Connections() == 1 }, time.Second, 10*time.Millisecond)

	_, _, err := p2.conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocketConnectIgnoresBadCredential(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	created := s.create(t, "A", 60)
	conn := s.dial(t)

	sendFrame(t, conn, frameConnect, sessionPayload{GameID: created.GameID, Password: "forged"})
	sendFrame(t, conn, "noSuchFrame", struct{}{})
	// the bind produced nothing, so the first reply is for the second frame
	assert.Equal(t, "unsupported frame type", readError(t, conn))
}

func TestWebSocketDecodeErrorsCloseConnection(t *testing.T) {
	s := newServer(t, hub.Options{}, nil)
	conn := s.dial(t)

	for i := 0; i < maxDecodeErrorsPerConn; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		assert.Equal(t, "invalid frame", readError(t, conn))
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.ws.Connections() == 0 }, time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://good.test"})

	r, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://good.test")
	assert.True(t, check(r))
	r.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(r))

	r.Header.Set("Origin", "http://evil.test")
	assert.True(t, originChecker(nil)(r))
}

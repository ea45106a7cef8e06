package handler

import (
	"encoding/json"
	"log"

	"sixinarow/internal/game"
	"sixinarow/internal/match"
	"sixinarow/internal/player"
)

// Client frame types.
const (
	frameConnect    = "connectToGame"
	framePlayMove   = "playMove"
	frameDisconnect = "disconnectFromGame"
)

// Server frame types.
const (
	frameGameState          = "gameState"
	framePlayerDisconnected = "playerDisconnected"
	frameError              = "error"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionPayload struct {
	GameID   string `json:"gameId"`
	Password string `json:"password"`
}

type movePayload struct {
	GameID      string `json:"gameId"`
	Password    string `json:"password"`
	ColumnIndex *int   `json:"columnIndex"`
}

type disconnectedPayload struct {
	PlayerNumber game.Seat `json:"playerNumber"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (h *WebSocketHandler) HandleConnect(p *player.Player, raw json.RawMessage) {
	var msg sessionPayload
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(p, "invalid payload")
		return
	}
	// Unknown sessions and credentials are ignored.
	snap, ok := h.Engine.BindConnection(msg.GameID, msg.Password, p.ID)
	if !ok {
		return
	}
	h.send(p, frameGameState, snap)
}

func (h *WebSocketHandler) HandleMove(p *player.Player, raw json.RawMessage) {
	var msg movePayload
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(p, "invalid payload")
		return
	}
	if msg.ColumnIndex == nil {
		h.sendError(p, game.ErrOutOfRange.Error())
		return
	}

	// successful moves reach both seats through Broadcast
	if _, err := h.Engine.PlaceMove(msg.GameID, msg.Password, *msg.ColumnIndex); err != nil {
		h.sendError(p, err.Error())
	}
}

func (h *WebSocketHandler) HandleLeave(p *player.Player, raw json.RawMessage) {
	var msg sessionPayload
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(p, "invalid payload")
		return
	}
	if _, err := h.Engine.LeaveSession(msg.GameID, msg.Password); err != nil {
		h.sendError(p, err.Error())
	}
}

// encode turns an engine update into the frame clients expect.
func encode(u match.Update) wsFrame {
	switch u.Kind {
	case match.UpdateSeatDisconnected:
		return wsFrame{Type: framePlayerDisconnected, Payload: mustJSON(disconnectedPayload{PlayerNumber: u.Seat})}
	default:
		return wsFrame{Type: frameGameState, Payload: mustJSON(u.State)}
	}
}

func (h *WebSocketHandler) send(p *player.Player, frameType string, payload any) {
	if err := p.SendJSON(wsFrame{Type: frameType, Payload: mustJSON(payload)}); err != nil {
		log.Printf("write to %s failed: %v", p.ID, err)
	}
}

func (h *WebSocketHandler) sendError(p *player.Player, message string) {
	h.send(p, frameError, errorPayload{Message: message})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}

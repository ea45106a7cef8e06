package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sixinarow/internal/game"
	"sixinarow/internal/hub"
	"sixinarow/internal/telemetry"
)

const maxBodyBytes = 1 << 14

// Store is the session-store surface the HTTP API needs.
type Store interface {
	CreateSession(creatorName string, timeLimit int) (string, string, *game.Game, error)
	JoinSession(id, joinerName string) (string, *game.Game, game.Seat, error)
	ListJoinable() []hub.Listing
}

// API serves game creation, joining and the lobby listing.
type API struct {
	Store  Store
	tracer trace.Tracer
}

func NewAPI(store Store) *API {
	return &API{Store: store, tracer: telemetry.Tracer("http")}
}

type createRequest struct {
	PlayerName string `json:"playerName"`
	TimeLimit  int    `json:"timeLimit"`
}

type joinRequest struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

type sessionResponse struct {
	GameID       string        `json:"gameId"`
	Password     string        `json:"password"`
	GameState    game.Snapshot `json:"gameState"`
	PlayerNumber game.Seat     `json:"playerNumber,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter wires the HTTP API and the websocket channel behind the request
// logger, the per-client rate limiter and CORS for allowedOrigins (any
// origin when empty).
func NewRouter(api *API, ws *WebSocketHandler, limiter *RateLimiter, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return limiter.Middleware(h)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			log.Printf("health write: %v", err)
		}
	}).Methods(http.MethodGet)

	r.Handle("/api/games/create", limited(api.CreateGame)).Methods(http.MethodPost)
	r.Handle("/api/games/join", limited(api.JoinGame)).Methods(http.MethodPost)
	r.Handle("/api/games/available", limited(api.AvailableGames)).Methods(http.MethodGet)
	r.Handle("/ws", limited(ws.Handle)).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.MaxAge(600),
	)
	return cors(r)
}

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "games.create")
	defer span.End()
	r = r.WithContext(ctx)

	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, span, err)
		return
	}

	id, password, g, err := a.Store.CreateSession(req.PlayerName, req.TimeLimit)
	if err != nil {
		writeError(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("game.id", id), attribute.Int("game.time_limit", req.TimeLimit))

	g.Mu.Lock()
	snap := g.Snapshot()
	g.Mu.Unlock()

	writeJSON(w, http.StatusCreated, sessionResponse{GameID: id, Password: password, GameState: snap})
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.tracer.Start(r.Context(), "games.join")
	defer span.End()
	r = r.WithContext(ctx)

	var req joinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("game.id", req.GameID))

	password, g, seat, err := a.Store.JoinSession(req.GameID, req.PlayerName)
	if err != nil {
		writeError(w, span, err)
		return
	}

	g.Mu.Lock()
	snap := g.Snapshot()
	g.Mu.Unlock()

	writeJSON(w, http.StatusOK, sessionResponse{
		GameID:       req.GameID,
		Password:     password,
		GameState:    snap,
		PlayerNumber: seat,
	})
}

func (a *API) AvailableGames(w http.ResponseWriter, r *http.Request) {
	_, span := a.tracer.Start(r.Context(), "games.available")
	defer span.End()

	games := a.Store.ListJoinable()
	span.SetAttributes(attribute.Int("games.count", len(games)))
	writeJSON(w, http.StatusOK, games)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return game.NewError(game.CodeValidation, "invalid request body")
	}
	return nil
}

// statusFor maps a rejection to its HTTP status.
func statusFor(err error) int {
	switch game.CodeOf(err) {
	case game.CodeValidation, game.CodeInvalidState, game.CodeNotYourTurn, game.CodeOutOfRange, game.CodeColumnFull:
		return http.StatusBadRequest
	case game.CodeNotFound:
		return http.StatusNotFound
	case game.CodeCapacity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, span trace.Span, err error) {
	status := statusFor(err)
	span.SetAttributes(attribute.Int("http.status_code", status))
	message := err.Error()
	if status == http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("request failed: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

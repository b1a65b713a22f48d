package api

import (
	"net/http"

	"bombtag-matchmaker/health"
	"bombtag-matchmaker/matchmaking"
	"bombtag-matchmaker/matchtoken"
	"bombtag-matchmaker/metrics"
	"bombtag-matchmaker/registry"
	"bombtag-matchmaker/rooms"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server holds the HTTP surface over the matchmaking core.
type Server struct {
	engine  *matchmaking.Engine
	servers *registry.Registry
	rooms   *rooms.Service
	tokens  *matchtoken.Codec
}

func New(engine *matchmaking.Engine, servers *registry.Registry, roomSvc *rooms.Service, tokens *matchtoken.Codec) *Server {
	return &Server{
		engine:  engine,
		servers: servers,
		rooms:   roomSvc,
		tokens:  tokens,
	}
}

// Router builds the full route table, including health and metrics endpoints,
// wrapped in a permissive CORS layer (browser clients call this API from
// arbitrary origins; credentials are never used).
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	m := r.PathPrefix("/api/matches").Subrouter()
	m.HandleFunc("/queue", s.handleEnqueue).Methods(http.MethodPost)
	m.HandleFunc("/queue/{ticketId}", s.handleQueueStatus).Methods(http.MethodGet)
	m.HandleFunc("/queue/{ticketId}/cancel", s.handleQueueCancel).Methods(http.MethodPost)
	m.HandleFunc("/{matchId}/result", s.handleMatchResult).Methods(http.MethodPost)

	d := r.PathPrefix("/api/ds").Subrouter()
	d.HandleFunc("/register", s.handleServerRegister).Methods(http.MethodPost)
	d.HandleFunc("/matches/verify-start", s.handleVerifyStart).Methods(http.MethodPost)
	d.HandleFunc("/{dsId}/status", s.handleServerStatus).Methods(http.MethodPost)
	d.HandleFunc("/{dsId}", s.handleServerGet).Methods(http.MethodGet)

	rm := r.PathPrefix("/api/rooms").Subrouter()
	rm.HandleFunc("", s.handleRoomCreate).Methods(http.MethodPost)
	rm.HandleFunc("/{roomId}/join", s.handleRoomJoin).Methods(http.MethodPost)
	rm.HandleFunc("/{roomId}/leave", s.handleRoomLeave).Methods(http.MethodPost)
	rm.HandleFunc("/{roomId}/start", s.handleRoomStart).Methods(http.MethodPost)
	rm.HandleFunc("/{roomId}", s.handleRoomGet).Methods(http.MethodGet)

	health.Register(r)
	metrics.Register(r)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Player-Id", "X-Player-Nickname"}),
	)(r)
}

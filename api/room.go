package api

import (
	"net/http"

	"bombtag-matchmaker/matchmaking"
	"bombtag-matchmaker/rooms"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type createRoomReq struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	Password   string `json:"password"`
}

type joinRoomReq struct {
	Password string `json:"password"`
}

type roomSummaryRes struct {
	RoomID     string               `json:"roomId"`
	Name       string               `json:"name"`
	HostID     string               `json:"hostId"`
	Status     string               `json:"status"`
	MaxPlayers int                  `json:"maxPlayers"`
	Players    []matchmaking.Player `json:"players"`
}

type startRoomRes struct {
	MatchID             string `json:"matchId"`
	Map                 string `json:"map"`
	Seed                int    `json:"seed"`
	HostPlayerID        string `json:"hostPlayerId"`
	HostAddress         string `json:"hostAddress"`
	HostInternalAddress string `json:"hostInternalAddress,omitempty"`
	HostPort            int    `json:"hostPort"`
}

func toRoomSummaryRes(snap rooms.Snapshot) roomSummaryRes {
	return roomSummaryRes{
		RoomID:     snap.RoomID,
		Name:       snap.Name,
		HostID:     snap.HostID,
		Status:     string(snap.Status),
		MaxPlayers: snap.MaxPlayers,
		Players:    snap.Players,
	}
}

func (s *Server) handleRoomCreate(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createRoomReq
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_BODY")
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = 4
	}

	room, err := s.rooms.Create(playerID, req.Name, req.MaxPlayers, req.Password, resolveRemoteAddress(r))
	if err != nil {
		writeError(w, err)
		return
	}
	// The host occupies the first slot of their own room.
	if err := s.rooms.Join(room, matchmaking.Player{PlayerID: playerID, Nickname: resolveNickname(r)}, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomSummaryRes(room.Snapshot()))
}

func (s *Server) handleRoomJoin(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req joinRoomReq
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_BODY")
		return
	}

	room, ok := s.rooms.Find(mux.Vars(r)["roomId"])
	if !ok {
		writeError(w, rooms.ErrNotFound)
		return
	}
	if err := s.rooms.Join(room, matchmaking.Player{PlayerID: playerID, Nickname: resolveNickname(r)}, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomSummaryRes(room.Snapshot()))
}

func (s *Server) handleRoomLeave(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	room, ok := s.rooms.Find(mux.Vars(r)["roomId"])
	if !ok {
		writeError(w, rooms.ErrNotFound)
		return
	}
	s.rooms.Leave(room, playerID)
	writeJSON(w, http.StatusOK, okRes{OK: true})
}

func (s *Server) handleRoomStart(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	room, ok := s.rooms.Find(mux.Vars(r)["roomId"])
	if !ok {
		writeError(w, rooms.ErrNotFound)
		return
	}
	if err := s.rooms.Start(room, playerID, rooms.MinPlayersToStart); err != nil {
		writeError(w, err)
		return
	}

	s.rooms.UpdateHostEndpoint(room, resolveRemoteAddress(r), 0)
	info := s.rooms.StartInfoFor(room, resolveRemoteAddress(r))

	log.Info().Str("room", room.RoomID()).Str("match", mask(info.MatchID)).Msg("api: room match started")
	writeJSON(w, http.StatusOK, startRoomRes{
		MatchID:             info.MatchID,
		Map:                 info.Map,
		Seed:                info.Seed,
		HostPlayerID:        info.HostPlayerID,
		HostAddress:         info.HostAddress,
		HostInternalAddress: info.HostInternal,
		HostPort:            info.HostPort,
	})
}

func (s *Server) handleRoomGet(w http.ResponseWriter, r *http.Request) {
	room, ok := s.rooms.Find(mux.Vars(r)["roomId"])
	if !ok {
		writeError(w, rooms.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toRoomSummaryRes(room.Snapshot()))
}

package api

import (
	"net/http"
	"time"

	"bombtag-matchmaker/matchmaking"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// MatchQueueStatusRes is the wire projection of a ticket's queue status.
type MatchQueueStatusRes struct {
	TicketID             string               `json:"ticketId"`
	Status               string               `json:"status"`
	Position             *int                 `json:"position,omitempty"`
	ReadyInSeconds       *int                 `json:"readyInSeconds,omitempty"`
	WaitForFourthSeconds int                  `json:"waitForFourthSeconds"`
	MinPlayers           int                  `json:"minPlayers"`
	MaxPlayers           int                  `json:"maxPlayers"`
	MatchID              string               `json:"matchId,omitempty"`
	Players              []matchmaking.Player `json:"players"`
	HostPlayerID         string               `json:"hostPlayerId,omitempty"`
	HostAddress          string               `json:"hostAddress,omitempty"`
	HostPort             *int                 `json:"hostPort,omitempty"`
	HostInternalAddress  string               `json:"hostInternalAddress,omitempty"`
	QueryPort            *int                 `json:"queryPort,omitempty"`
	DedicatedServerID    string               `json:"dedicatedServerId,omitempty"`
	StartToken           string               `json:"startToken,omitempty"`
	StartTokenExpiresAt  *time.Time           `json:"startTokenExpiresAt,omitempty"`
}

type okRes struct {
	OK bool `json:"ok"`
}

func toQueueStatusRes(st matchmaking.QueueStatus) MatchQueueStatusRes {
	res := MatchQueueStatusRes{
		TicketID:             st.TicketID,
		Status:               string(st.Status),
		Position:             st.Position,
		ReadyInSeconds:       st.ReadyInSeconds,
		WaitForFourthSeconds: st.WaitForFourthSeconds,
		MinPlayers:           st.MinPlayers,
		MaxPlayers:           st.MaxPlayers,
		Players:              st.Players,
	}

	if info := st.Match; info != nil {
		res.MatchID = info.MatchID
		res.HostPlayerID = info.HostPlayerID
		res.HostAddress = info.HostAddress
		res.HostInternalAddress = info.HostInternalAddress
		res.DedicatedServerID = info.DedicatedServerID
		res.StartToken = info.StartToken

		hostPort := info.HostPort
		res.HostPort = &hostPort
		if info.QueryPort > 0 {
			queryPort := info.QueryPort
			res.QueryPort = &queryPort
		}
		expiresAt := info.StartTokenExpiresAt
		res.StartTokenExpiresAt = &expiresAt
	}
	return res
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status := s.engine.Enqueue(playerID, resolveNickname(r), resolveRemoteAddress(r))
	writeJSON(w, http.StatusOK, toQueueStatusRes(status))
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status, ok := s.engine.Status(playerID, mux.Vars(r)["ticketId"])
	if !ok {
		writeErrorCode(w, http.StatusNotFound, "TICKET_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toQueueStatusRes(status))
}

func (s *Server) handleQueueCancel(w http.ResponseWriter, r *http.Request) {
	playerID, err := requirePlayerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status, ok := s.engine.Cancel(playerID, mux.Vars(r)["ticketId"])
	if !ok {
		writeErrorCode(w, http.StatusNotFound, "TICKET_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toQueueStatusRes(status))
}

// handleMatchResult acknowledges a dedicated server's end-of-match report.
// Results are not recorded anywhere yet; the endpoint exists so servers have
// a stable callback.
func (s *Server) handleMatchResult(w http.ResponseWriter, r *http.Request) {
	log.Info().Str("match", mask(mux.Vars(r)["matchId"])).Msg("api: match result reported")
	writeJSON(w, http.StatusOK, okRes{OK: true})
}

package api

import (
	"net/http"
	"strings"
	"time"

	"bombtag-matchmaker/matchtoken"
	"bombtag-matchmaker/metrics"
	"bombtag-matchmaker/registry"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

type registerDedicatedServerReq struct {
	DSID            string `json:"dsId"`
	PublicAddress   string `json:"publicAddress"`
	InternalAddress string `json:"internalAddress"`
	GamePort        int    `json:"gamePort"`
	QueryPort       int    `json:"queryPort"`
	Status          string `json:"status"`
}

type updateDedicatedServerStatusReq struct {
	Status string `json:"status"`
}

type dedicatedServerRes struct {
	DSID            string    `json:"dsId"`
	PublicAddress   string    `json:"publicAddress,omitempty"`
	InternalAddress string    `json:"internalAddress,omitempty"`
	GamePort        int       `json:"gamePort"`
	QueryPort       *int      `json:"queryPort,omitempty"`
	Status          string    `json:"status"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

type verifyStartTokenReq struct {
	DSID       string `json:"dsId"`
	RoomID     string `json:"roomId"`
	MatchID    string `json:"matchId"`
	StartToken string `json:"startToken"`
}

type verifyStartTokenRes struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	RoomID            string `json:"roomId,omitempty"`
	MatchID           string `json:"matchId,omitempty"`
	DedicatedServerID string `json:"dedicatedServerId,omitempty"`
	ExpiresAt         string `json:"expiresAt,omitempty"`
}

func toDedicatedServerRes(rec registry.Record) dedicatedServerRes {
	res := dedicatedServerRes{
		DSID:            rec.ID,
		PublicAddress:   rec.PublicAddress,
		InternalAddress: rec.InternalAddress,
		GamePort:        rec.GamePort,
		Status:          string(rec.Status),
		LastUpdated:     rec.LastUpdated,
	}
	if rec.QueryPort > 0 {
		queryPort := rec.QueryPort
		res.QueryPort = &queryPort
	}
	return res
}

func (s *Server) handleServerRegister(w http.ResponseWriter, r *http.Request) {
	var req registerDedicatedServerReq
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_BODY")
		return
	}

	var status registry.Status
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := registry.ParseStatus(req.Status)
		if !ok {
			writeErrorCode(w, http.StatusBadRequest, "INVALID_STATUS")
			return
		}
		status = parsed
	}

	rec, err := s.servers.RegisterOrUpdate(registry.Registration{
		ID:              strings.TrimSpace(req.DSID),
		PublicAddress:   req.PublicAddress,
		InternalAddress: req.InternalAddress,
		GamePort:        req.GamePort,
		QueryPort:       req.QueryPort,
		Status:          status,
	})
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "DS_ID_REQUIRED")
		return
	}
	writeJSON(w, http.StatusOK, toDedicatedServerRes(rec))
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	var req updateDedicatedServerStatusReq
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_BODY")
		return
	}

	status, ok := registry.ParseStatus(req.Status)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_STATUS")
		return
	}

	rec, ok := s.servers.UpdateStatus(mux.Vars(r)["dsId"], status)
	if !ok {
		writeErrorCode(w, http.StatusNotFound, "DEDICATED_SERVER_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toDedicatedServerRes(rec))
}

func (s *Server) handleServerGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.servers.Find(mux.Vars(r)["dsId"])
	if !ok {
		writeErrorCode(w, http.StatusNotFound, "DEDICATED_SERVER_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, toDedicatedServerRes(rec))
}

// handleVerifyStart authorizes a match start. Every failure path is a
// structured reason code rather than an HTTP error so the dedicated server
// can branch on it.
func (s *Server) handleVerifyStart(w http.ResponseWriter, r *http.Request) {
	var req verifyStartTokenReq
	if err := decodeBody(r, &req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_BODY")
		return
	}

	if strings.TrimSpace(req.StartToken) == "" {
		s.verifyFailure(w, "TOKEN_MISSING")
		return
	}

	payload, ok := s.tokens.Verify(req.StartToken)
	if !ok {
		s.verifyFailure(w, "TOKEN_INVALID")
		return
	}

	if reason, ok := s.checkClaims(payload, req); !ok {
		s.verifyFailure(w, reason)
		return
	}

	metrics.TokenVerificationsTotal.WithLabelValues("success").Inc()
	log.Info().Str("ds", mask(payload.ServerID)).Str("match", mask(payload.MatchID)).Msg("api: start token verified")
	writeJSON(w, http.StatusOK, verifyStartTokenRes{
		Success:           true,
		RoomID:            payload.RoomID,
		MatchID:           payload.MatchID,
		DedicatedServerID: payload.ServerID,
		ExpiresAt:         payload.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
}

// checkClaims compares a verified payload against the request's expectations
// and the live registry. Expiry is checked here, not in the codec.
func (s *Server) checkClaims(payload matchtoken.Payload, req verifyStartTokenReq) (string, bool) {
	if !payload.ExpiresAt.After(time.Now()) {
		return "TOKEN_EXPIRED", false
	}
	if hasText(req.DSID) && payload.ServerID != req.DSID {
		return "DEDICATED_SERVER_MISMATCH", false
	}
	if hasText(req.RoomID) && payload.RoomID != req.RoomID {
		return "ROOM_MISMATCH", false
	}
	if hasText(req.MatchID) && payload.MatchID != req.MatchID {
		return "MATCH_MISMATCH", false
	}
	if _, ok := s.servers.Find(payload.ServerID); !ok {
		return "DEDICATED_SERVER_NOT_REGISTERED", false
	}
	return "", true
}

func (s *Server) verifyFailure(w http.ResponseWriter, reason string) {
	metrics.TokenVerificationsTotal.WithLabelValues(reason).Inc()
	log.Warn().Str("reason", reason).Msg("api: start token rejected")
	writeJSON(w, http.StatusOK, verifyStartTokenRes{Success: false, Error: reason})
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"bombtag-matchmaker/rooms"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type errorRes struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("api: failed to encode response")
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorRes{Error: code})
}

// writeError maps the service error taxonomy onto HTTP statuses, keeping the
// error code as the machine-readable body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.Cause(err) {
	case errPlayerIDRequired, rooms.ErrNameRequired:
		status = http.StatusBadRequest
	case rooms.ErrNotFound:
		status = http.StatusNotFound
	case rooms.ErrAlreadyExists, rooms.ErrFullOrStarted, rooms.ErrNotEnoughPlayers:
		status = http.StatusConflict
	case rooms.ErrWrongPassword, rooms.ErrOnlyHost:
		status = http.StatusForbidden
	}

	writeJSON(w, status, errorRes{Error: errors.Cause(err).Error()})
}

// decodeBody parses an optional JSON body; an absent body leaves the target
// at its zero value.
func decodeBody(r *http.Request, into any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(into); err != nil && err != io.EOF {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

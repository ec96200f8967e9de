// Package respond writes the JSON bodies of the relay's management API.
// Socket-level failures travel as error frames on the connection; these
// helpers only back the HTTP surface (prekeys, members, nuke, health).
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// errorBody is the uniform error payload of the management API.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The status line is already on the wire; all that is left is the log.
		log.Error().Err(err).Msg("encoding response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	WriteJSON(w, status, errorBody{Error: msg, Code: status})
}

// WriteBadRequest rejects malformed input with a 400.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

// WriteNotFound writes a 404 for an absent user or bundle.
func WriteNotFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// WriteInternalError writes a 500 for store or hub failures.
func WriteInternalError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, msg)
}

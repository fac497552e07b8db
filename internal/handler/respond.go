package handler

import (
	"encoding/json"
	"net/http"

	"stellarid/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the tagged error kinds to HTTP statuses and writes the
// standard {"error":{message,code}} payload.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if e, ok := model.As(err); ok {
		switch e.Kind {
		case model.KindValidation:
			status = http.StatusBadRequest
		case model.KindCredential:
			status = http.StatusUnauthorized
		case model.KindProtocol:
			status = http.StatusBadRequest
		case model.KindNetwork:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, model.PayloadFor(err))
}

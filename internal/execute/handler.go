package execute

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler exposes the client as POST endpoint compatible with the
// normalized response shape.
func Handler(c *Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, &Response{OK: false, Error: "invalid JSON"})
			return
		}

		res, err := c.Run(r.Context(), &req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, ErrNoCode):
			writeJSON(w, http.StatusBadRequest, &Response{OK: false, Error: ErrNoCode.Error()})
		case errors.Is(err, ErrTimedOut):
			writeJSON(w, http.StatusGatewayTimeout, &Response{OK: false, Error: ErrTimedOut.Error()})
		case errors.Is(err, ErrUpstream):
			writeJSON(w, http.StatusBadGateway, res)
		default:
			writeJSON(w, http.StatusGatewayTimeout, &Response{OK: false, Error: ErrUnavailable.Error()})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("execute: encoding response failed", "err", err)
	}
}

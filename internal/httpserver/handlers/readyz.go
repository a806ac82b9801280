package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Entries int  `json:"entries"`
}

// Readyz answers 503 until the first index rebuild has completed.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		ready := d.Snapshot != nil && d.Snapshot.Ready()
		status := http.StatusOK
		resp := readyzResponse{Ready: ready}
		if ready {
			resp.Entries = d.Snapshot.Count()
		} else {
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/render"
)

// RecordsPrefix is where the persisted bookmark files are served.
const RecordsPrefix = "/records/"

type entriesResponse struct {
	Count   int            `json:"count"`
	Entries []domain.Entry `json:"entries"`
}

// Page renders the index page from the current snapshot.
func Page(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready(d) {
			http.Error(w, "index not built yet", http.StatusServiceUnavailable)
			return
		}

		page, err := render.RenderIndex(servedEntries(d.Snapshot.All()))
		if err != nil {
			d.Logger.Errorf("render index page: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write([]byte(page)); err != nil {
			d.Logger.Debugf("failed to write page: %v", err)
		}
	}
}

// Entries returns the indexed entries as JSON, optionally filtered by
// ?tag= and ?domain= (both must match when both are given).
func Entries(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready(d) {
			http.Error(w, "index not built yet", http.StatusServiceUnavailable)
			return
		}

		tag := strings.TrimSpace(r.URL.Query().Get("tag"))
		dom := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("domain")))

		var entries []domain.Entry
		switch {
		case dom != "":
			entries = d.Snapshot.ByDomain(dom)
			if tag != "" {
				kept := entries[:0]
				for _, e := range entries {
					if e.HasTag(tag) {
						kept = append(kept, e)
					}
				}
				entries = kept
			}
		case tag != "":
			entries = d.Snapshot.ByTag(tag)
		default:
			entries = d.Snapshot.All()
		}

		entries = servedEntries(entries)
		if entries == nil {
			entries = []domain.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_ = json.NewEncoder(w).Encode(entriesResponse{Count: len(entries), Entries: entries})
	}
}

func ready(d deps.Deps) bool {
	return d.Snapshot != nil && d.Snapshot.Ready()
}

// servedEntries points the details links at the records route. The
// entries are copies, so the snapshot is not touched.
func servedEntries(entries []domain.Entry) []domain.Entry {
	for i := range entries {
		entries[i].DetailsPath = RecordsPrefix + url.PathEscape(filepath.Base(entries[i].Path))
	}
	return entries
}

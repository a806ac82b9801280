package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
)

const statusTimeLayout = "2006-01-02 15:04:05"

type componentStatus struct {
	OK          bool              `json:"ok"`
	Entries     *int              `json:"entries,omitempty"`
	Skipped     *int              `json:"skipped,omitempty"`
	LastRebuild string            `json:"last_rebuild,omitempty"`
	Ingested    *int64            `json:"ingested,omitempty"`
	LastRun     *domain.IngestRun `json:"last_run,omitempty"`
	Mode        string            `json:"mode,omitempty"`
	Error       string            `json:"error,omitempty"`
}

type statusResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Status reports the index, redis and ledger state.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"index":  indexStatus(d),
			"redis":  checkRedis(ctx, d),
			"ledger": ledgerStatus(ctx, d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(statusResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func indexStatus(d deps.Deps) componentStatus {
	if d.Snapshot == nil || !d.Snapshot.Ready() {
		return componentStatus{OK: false, LastRebuild: "never", Error: "index not built yet"}
	}

	entries := d.Snapshot.Count()
	skipped := d.Snapshot.Skipped()
	return componentStatus{
		OK:          true,
		Entries:     &entries,
		Skipped:     &skipped,
		LastRebuild: d.Snapshot.LastRebuild().Format(statusTimeLayout),
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: false, Mode: "disabled"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Mode: "degraded", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func ledgerStatus(ctx context.Context, d deps.Deps) componentStatus {
	if d.Ledger == nil {
		return componentStatus{OK: false, Mode: "disabled"}
	}

	count, err := d.Ledger.CountIngested(ctx)
	if err != nil {
		return componentStatus{OK: false, Mode: "degraded", Error: err.Error()}
	}
	st := componentStatus{OK: true, Mode: "enabled", Ingested: &count}

	run, ok, err := d.Ledger.LastRun(ctx)
	if err != nil {
		st.OK = false
		st.Mode = "degraded"
		st.Error = err.Error()
		return st
	}
	if ok {
		st.LastRun = &run
	}
	return st
}

// determineMode folds component health into one word. A missing index is
// critical; redis problems only degrade the ingestion bookkeeping.
func determineMode(components map[string]componentStatus) string {
	if idx, exists := components["index"]; exists && !idx.OK {
		return "starting"
	}
	for _, name := range []string{"redis", "ledger"} {
		if c, exists := components[name]; exists && c.Mode == "degraded" {
			return "degraded"
		}
	}
	return "ok"
}

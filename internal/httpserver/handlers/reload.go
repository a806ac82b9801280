package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// Reload queues a rebuild of the index page.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Rebuilder == nil {
			http.Error(w, "index rebuilds are not available", http.StatusServiceUnavailable)
			return
		}

		if !d.Rebuilder.Trigger() {
			d.Logger.Warn("index rebuild already queued",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Rebuild already queued, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		d.Logger.Info("manual index rebuild triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		w.WriteHeader(http.StatusAccepted)
		if _, err := w.Write([]byte("✅ Rebuild triggered successfully\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}

package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/utils"
	"github.com/MrSnakeDoc/mailmarks/internal/vault"
)

// Record serves one persisted bookmark file from the content directory.
// Only plain markdown basenames are accepted.
func Record(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !validRecordName(name) {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(filepath.Join(d.ContentDir, name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				d.Logger.Warnf("open record %s: %v", name, err)
			}
			http.NotFound(w, r)
			return
		}
		defer utils.MustClose(f, d.Logger, name)

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, name, info.ModTime(), f)
	}
}

func validRecordName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return false
	}
	return filepath.Ext(name) == vault.Extension
}

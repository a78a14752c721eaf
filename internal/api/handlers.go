// Package api exposes the read-only JSON surface behind the dashboard:
// index records, search, and run history. There is no write path; all
// mutation happens through the CLI.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kitabite/scribe/internal/memory"
	"github.com/kitabite/scribe/internal/storage"
)

// Deps carries what the handlers read from. Runs may be nil; /runs then
// reports an empty list.
type Deps struct {
	// IndexPath is re-read per request so the dashboard always reflects the
	// index file the CLI last wrote.
	IndexPath string
	Runs      *storage.Store
}

// RecordView is the wire shape of an index record. Vectors are omitted;
// the dashboard has no use for raw embeddings.
type RecordView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Module    string `json:"module"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"created_at"`
	HasVector bool   `json:"has_vector"`
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/records", handleRecords(deps))
	r.Get("/search", handleSearch(deps))
	r.Get("/runs", handleRuns(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func handleRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := memory.Load(deps.IndexPath)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading index: %v", err)
			return
		}

		limit := parseIntParam(r, "limit", 50, 500)
		records := store.Records()
		views := make([]RecordView, 0, len(records))
		for _, rec := range records {
			views = append(views, toView(rec))
		}
		// Newest first, mirroring the CLI listing.
		for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
			views[i], views[j] = views[j], views[i]
		}
		if len(views) > limit {
			views = views[:limit]
		}
		writeJSON(w, views)
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}

		store, err := memory.Load(deps.IndexPath)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading index: %v", err)
			return
		}

		limit := parseIntParam(r, "limit", 5, 50)
		views := []RecordView{}
		for _, rec := range store.Search([]string{q}, limit) {
			views = append(views, toView(rec))
		}
		writeJSON(w, views)
	}
}

func handleRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		runs := []storage.Run{}
		if deps.Runs != nil {
			listed, err := deps.Runs.ListRuns(limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "listing runs: %v", err)
				return
			}
			if listed != nil {
				runs = listed
			}
		}
		writeJSON(w, runs)
	}
}

func toView(rec memory.Record) RecordView {
	return RecordView{
		ID:        rec.ID,
		Title:     rec.Title,
		Slug:      rec.Slug,
		Module:    rec.Module,
		Path:      rec.Path,
		CreatedAt: rec.CreatedAt(),
		HasVector: len(rec.Vector) > 0,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doctadg/perpstrader-sub004/internal/articles"
	"github.com/doctadg/perpstrader-sub004/internal/heatmap"
	"github.com/doctadg/perpstrader-sub004/internal/news"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": deps.Version,
		})
	}
}

func handleGetHeatmap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := heatmap.Options{
			Hours:    parseIntParam(r, "hours", 0, 0),
			Limit:    parseIntParam(r, "limit", 0, 0),
			Category: r.URL.Query().Get("category"),
			Force:    parseBoolParam(r, "force"),
		}

		res, err := deps.Heatmap.GetHeatmap(r.Context(), opts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "building heatmap: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func handleRebuildHeatmap(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := heatmap.Options{
			Hours:    parseIntParam(r, "hours", 0, 0),
			Category: r.URL.Query().Get("category"),
		}

		res, err := deps.Heatmap.Rebuild(r.Context(), opts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rebuilding heatmap: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func handleClusterDetails(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		hours := parseIntParam(r, "hours", 0, 0)

		cluster, err := deps.Heatmap.GetClusterDetails(r.Context(), id, hours)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "cluster not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading cluster: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cluster)
	}
}

func handleTimeline(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := parseIntParam(r, "hours", 0, 0)
		bucketHours := parseIntParam(r, "bucketHours", 0, 0)
		category := r.URL.Query().Get("category")

		tl, err := deps.Heatmap.GetTimeline(r.Context(), hours, bucketHours, category)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "building timeline: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tl)
	}
}

func handleListArticles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := articles.Filter{
			Hours:      parseIntParam(r, "hours", 0, 0),
			Limit:      parseIntParam(r, "limit", 0, 500),
			Source:     q.Get("source"),
			Importance: q.Get("importance"),
			Sentiment:  q.Get("sentiment"),
			Category:   q.Get("category"),
		}

		list, err := deps.Articles.List(r.Context(), f)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing articles: %v", err)
			return
		}
		if list == nil {
			list = []news.SourceArticle{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func parseBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return false
	}
	return v
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

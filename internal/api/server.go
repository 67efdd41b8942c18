package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/doctadg/perpstrader-sub004/internal/articles"
	"github.com/doctadg/perpstrader-sub004/internal/heatmap"
	"github.com/doctadg/perpstrader-sub004/internal/news"
)

// HeatmapService is the slice of the heatmap service the REST and MCP
// surfaces consume.
type HeatmapService interface {
	GetHeatmap(ctx context.Context, opts heatmap.Options) (*heatmap.Result, error)
	Rebuild(ctx context.Context, opts heatmap.Options) (*heatmap.Result, error)
	GetClusterDetails(ctx context.Context, id string, hours int) (*heatmap.Cluster, error)
	GetTimeline(ctx context.Context, hours, bucketHours int, category string) (*heatmap.Timeline, error)
}

// ArticleLister serves the raw article listing behind the dashboard.
type ArticleLister interface {
	List(ctx context.Context, f articles.Filter) ([]news.SourceArticle, error)
}

// Deps holds everything the API surfaces need.
type Deps struct {
	Heatmap  HeatmapService
	Articles ArticleLister
	Token    string // empty disables auth
	Version  string
}

// NewHandler builds the REST router. /health stays open so probes work;
// everything under /v1 requires the bearer token when one is configured.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Route("/v1/news", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/heatmap", handleGetHeatmap(deps))
		r.Post("/heatmap/rebuild", handleRebuildHeatmap(deps))
		r.Get("/heatmap/clusters/{id}", handleClusterDetails(deps))
		r.Get("/heatmap/timeline", handleTimeline(deps))
		r.Get("/articles", handleListArticles(deps))
	})

	return r
}

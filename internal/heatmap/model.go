package heatmap

import (
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

// ArticleRef is the lightweight article projection attached to a cluster.
type ArticleRef struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Source      string          `json:"source"`
	URL         string          `json:"url,omitempty"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	Sentiment   news.Sentiment  `json:"sentiment"`
	Importance  news.Importance `json:"importance"`
}

// Cluster is one finalized topic cluster in a heatmap snapshot. IDs are
// stable across rebuilds for as long as the underlying topic key persists in
// state.
type Cluster struct {
	ID               string         `json:"id"`
	Topic            string         `json:"topic"`
	TopicKey         string         `json:"topicKey"`
	Category         string         `json:"category"`
	Keywords         []string       `json:"keywords"`
	Summary          string         `json:"summary"`
	HeatScore        float64        `json:"heatScore"`
	Velocity         float64        `json:"velocity"`
	Trend            news.Trend     `json:"trend"`
	Urgency          news.Urgency   `json:"urgency"`
	Sentiment        news.Sentiment `json:"sentiment"`
	SentimentScore   float64        `json:"sentimentScore"`
	ArticleCount     int            `json:"articleCount"`
	SourceCount      int            `json:"sourceCount"`
	LLMCoverage      float64        `json:"llmCoverage"`
	FreshnessMinutes int            `json:"freshnessMinutes"`
	FirstSeen        time.Time      `json:"firstSeen"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Articles         []ArticleRef   `json:"articles"`
}

// LLMInfo reports how much the labeling backend contributed to a build.
type LLMInfo struct {
	Enabled         bool    `json:"enabled"`
	Model           string  `json:"model,omitempty"`
	LabeledArticles int     `json:"labeledArticles"`
	Coverage        float64 `json:"coverage"`
}

// Result is one heatmap snapshot. Clusters are ordered hottest first;
// ByCategory regroups the same (limited) clusters per canonical category.
type Result struct {
	GeneratedAt   time.Time            `json:"generatedAt"`
	Hours         int                  `json:"hours"`
	Category      string               `json:"category"`
	TotalArticles int                  `json:"totalArticles"`
	TotalClusters int                  `json:"totalClusters"`
	Clusters      []Cluster            `json:"clusters"`
	ByCategory    map[string][]Cluster `json:"byCategory"`
	LLM           LLMInfo              `json:"llm"`
}

// TimelinePoint is one aggregated history bucket.
type TimelinePoint struct {
	BucketStart  time.Time          `json:"bucketStart"`
	MeanHeat     float64            `json:"meanHeat"`
	ArticleCount int                `json:"articleCount"`
	Observations int                `json:"observations"`
	ByCategory   map[string]float64 `json:"byCategory,omitempty"`
}

// Timeline is the bucketed heat history for a time window.
type Timeline struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Hours       int             `json:"hours"`
	BucketHours int             `json:"bucketHours"`
	Category    string          `json:"category"`
	Points      []TimelinePoint `json:"points"`
}

package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// StateSnapshot is the persisted per-topic cluster state carried between
// build cycles. One row per stable topic key; velocity for the next cycle is
// computed against HeatScore.
type StateSnapshot struct {
	TopicKey       string // "CATEGORY:slug"
	ClusterID      string
	HeatScore      float64
	Velocity       float64
	SentimentScore float64
	ArticleCount   int
	LLMCoverage    float64
	UpdatedAt      time.Time
}

// HistoryRow is one append-only observation of a cluster produced by one
// build cycle. The timeline aggregator reads these back in bucketed form.
type HistoryRow struct {
	ID             int64
	TopicKey       string
	ClusterID      string
	Category       string
	HeatScore      float64
	ArticleCount   int
	SourceCount    int
	SentimentScore float64
	Velocity       float64
	ObservedAt     time.Time
}

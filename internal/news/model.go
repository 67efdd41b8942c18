package news

import (
	"strings"
	"time"
)

// Sentiment is the directional market read attached to an article.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// Score maps sentiment to its numeric direction: +1, -1, or 0.
func (s Sentiment) Score() float64 {
	switch s {
	case SentimentBullish:
		return 1
	case SentimentBearish:
		return -1
	default:
		return 0
	}
}

// ParseSentiment folds free-form sentiment text into the known set,
// defaulting to NEUTRAL.
func ParseSentiment(raw string) Sentiment {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(raw))) {
	case SentimentBullish:
		return SentimentBullish
	case SentimentBearish:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// Importance is the editorial weight assigned to an article upstream.
type Importance string

const (
	ImportanceLow      Importance = "LOW"
	ImportanceMedium   Importance = "MEDIUM"
	ImportanceHigh     Importance = "HIGH"
	ImportanceCritical Importance = "CRITICAL"
)

// ParseImportance folds free-form importance text into the known set,
// defaulting to MEDIUM.
func ParseImportance(raw string) Importance {
	switch Importance(strings.ToUpper(strings.TrimSpace(raw))) {
	case ImportanceLow:
		return ImportanceLow
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceCritical:
		return ImportanceCritical
	default:
		return ImportanceMedium
	}
}

// Trend describes which way attention on a topic is moving.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

func ParseTrend(raw string) Trend {
	switch Trend(strings.ToUpper(strings.TrimSpace(raw))) {
	case TrendUp:
		return TrendUp
	case TrendDown:
		return TrendDown
	default:
		return TrendNeutral
	}
}

// Urgency classifies how fast a human or agent should look at a cluster.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

func ParseUrgency(raw string) Urgency {
	switch Urgency(strings.ToUpper(strings.TrimSpace(raw))) {
	case UrgencyMedium:
		return UrgencyMedium
	case UrgencyHigh:
		return UrgencyHigh
	case UrgencyCritical:
		return UrgencyCritical
	default:
		return UrgencyLow
	}
}

// SourceArticle is one ingested news item as read from the shared articles
// table. Instances are treated as immutable once loaded.
type SourceArticle struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Source      string     `json:"source"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Categories  []string   `json:"categories"` // first entry is the primary category
	Tags        []string   `json:"tags,omitempty"`
	Sentiment   Sentiment  `json:"sentiment"`
	Importance  Importance `json:"importance"`
}

// EventTime returns the best-known moment the story happened: the published
// timestamp when present, otherwise the ingestion timestamp.
func (a SourceArticle) EventTime() time.Time {
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// PrimaryCategory returns the canonical form of the article's first category.
func (a SourceArticle) PrimaryCategory() string {
	if len(a.Categories) == 0 {
		return CategoryGeneral
	}
	return NormalizeCategory(a.Categories[0])
}

// EventLabel is a model-produced annotation for one article. Labels live only
// for the duration of a single heatmap build and are never persisted.
type EventLabel struct {
	Topic    string
	Trend    Trend
	Urgency  Urgency
	Keywords []string
}

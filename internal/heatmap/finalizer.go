package heatmap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

const (
	maxClusterArticles = 12
	maxKeywords        = 8
	maxTopicLen        = 120
	keywordVoteBoost   = 1.35
	fallbackTopic      = "Unlabeled Market Event"
)

// finalizeClusters turns accumulators into presentation clusters and orders
// them hottest first.
func finalizeClusters(accs []*accumulator, prev map[string]storage.StateSnapshot, now time.Time) []Cluster {
	clusters := make([]Cluster, 0, len(accs))
	for _, acc := range accs {
		clusters = append(clusters, acc.finalize(prev, now))
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.HeatScore != b.HeatScore {
			return a.HeatScore > b.HeatScore
		}
		if a.Velocity != b.Velocity {
			return a.Velocity > b.Velocity
		}
		if a.ArticleCount != b.ArticleCount {
			return a.ArticleCount > b.ArticleCount
		}
		return a.TopicKey < b.TopicKey
	})
	return clusters
}

func (acc *accumulator) finalize(prev map[string]storage.StateSnapshot, now time.Time) Cluster {
	articleCount := len(acc.members)
	sourceCount := len(acc.sources)

	raw := acc.weightSum*19 +
		math.Log2(float64(sourceCount+1))*3.4 +
		math.Sqrt(float64(articleCount))*4
	if over := articleCount - sourceCount; over > 0 {
		raw -= float64(over) * 0.35
	}
	if raw < 0 {
		raw = 0
	}
	heat := round2(100 * (1 - math.Exp(-raw/26)))

	prevState, hasPrev := prev[acc.stableKey]
	if !hasPrev {
		prevState, hasPrev = prev[acc.originalKey]
	}
	velocity := 0.0
	if hasPrev {
		velocity = round2(heat - prevState.HeatScore)
	}

	id := clusterID(acc.stableKey)
	if hasPrev && prevState.ClusterID != "" {
		id = prevState.ClusterID
	}

	sentimentScore := 0.0
	if acc.weightSum > 0 {
		sentimentScore = round2(acc.sentimentSum / acc.weightSum)
	}

	coverage := 0.0
	if articleCount > 0 {
		coverage = round2(float64(acc.labeled) / float64(articleCount))
	}

	freshness := int(now.Sub(acc.lastSeen).Minutes())
	if freshness < 0 {
		freshness = 0
	}

	latest := acc.latestTitle()
	span := acc.lastSeen.Sub(acc.firstSeen).Hours()

	return Cluster{
		ID:               id,
		Topic:            acc.topic(latest),
		TopicKey:         acc.stableKey,
		Category:         acc.category,
		Keywords:         acc.topKeywords(maxKeywords),
		Summary:          fmt.Sprintf("%d articles from %d sources over %.1fh; latest: %s", articleCount, sourceCount, span, cleanTitle(latest)),
		HeatScore:        heat,
		Velocity:         velocity,
		Trend:            acc.classifyTrend(velocity),
		Urgency:          acc.classifyUrgency(heat),
		Sentiment:        sentimentLabel(sentimentScore),
		SentimentScore:   sentimentScore,
		ArticleCount:     articleCount,
		SourceCount:      sourceCount,
		LLMCoverage:      coverage,
		FreshnessMinutes: freshness,
		FirstSeen:        acc.firstSeen,
		UpdatedAt:        acc.lastSeen,
		Articles:         acc.articleRefs(maxClusterArticles),
	}
}

// topic prefers the weighted label vote, falls back to the latest member
// title and finally to a generic placeholder.
func (acc *accumulator) topic(latestTitle string) string {
	if topic, ok := acc.votedTopic(); ok {
		return truncate(topic, maxTopicLen)
	}
	if cleaned := cleanTitle(latestTitle); cleaned != "" {
		return truncate(cleaned, maxTopicLen)
	}
	return fallbackTopic
}

func (acc *accumulator) latestTitle() string {
	latest := ""
	var latestAt time.Time
	for _, m := range acc.members {
		if et := m.article.EventTime(); latest == "" || et.After(latestAt) {
			latest = m.article.Title
			latestAt = et
		}
	}
	return latest
}

// cleanTitle drops the trailing "- Publisher" tail many feeds append.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = strings.TrimSpace(title[:idx])
	}
	return title
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

// topKeywords merges boosted label keywords with lexical token weights and
// keeps the heaviest display-worthy terms.
func (acc *accumulator) topKeywords(n int) []string {
	merged := make(map[string]float64, len(acc.tokenWeights)+len(acc.keywordWeights))
	for kw, w := range acc.keywordWeights {
		merged[kw] += w * keywordVoteBoost
	}
	for tok, w := range acc.tokenWeights {
		merged[tok] += w
	}
	kws := make([]string, 0, len(merged))
	for kw := range merged {
		if len(kw) >= 3 {
			kws = append(kws, kw)
		}
	}
	sort.Slice(kws, func(i, j int) bool {
		wi, wj := merged[kws[i]], merged[kws[j]]
		if wi != wj {
			return wi > wj
		}
		return kws[i] < kws[j]
	})
	if len(kws) > n {
		kws = kws[:n]
	}
	return kws
}

func (acc *accumulator) classifyTrend(velocity float64) news.Trend {
	net := acc.trendVotes[news.TrendUp] - acc.trendVotes[news.TrendDown]
	switch {
	case net >= 2:
		return news.TrendUp
	case net <= -2:
		return news.TrendDown
	case velocity >= 3:
		return news.TrendUp
	case velocity <= -3:
		return news.TrendDown
	default:
		return news.TrendNeutral
	}
}

func (acc *accumulator) classifyUrgency(heat float64) news.Urgency {
	critical := acc.importanceTally[news.ImportanceCritical]
	high := acc.importanceTally[news.ImportanceHigh]
	switch {
	case heat >= 85 || critical >= 2:
		return news.UrgencyCritical
	case heat >= 65 || critical >= 1 || high >= 4:
		return news.UrgencyHigh
	case heat >= 35:
		return news.UrgencyMedium
	default:
		return acc.urgencyPlurality()
	}
}

// urgencyPlurality picks the most voted label urgency, resolving ties toward
// the more severe level.
func (acc *accumulator) urgencyPlurality() news.Urgency {
	best := news.UrgencyLow
	bestVotes := 0
	for _, u := range []news.Urgency{news.UrgencyCritical, news.UrgencyHigh, news.UrgencyMedium, news.UrgencyLow} {
		if v := acc.urgencyVotes[u]; v > bestVotes {
			best, bestVotes = u, v
		}
	}
	return best
}

func sentimentLabel(score float64) news.Sentiment {
	switch {
	case score >= 0.15:
		return news.SentimentBullish
	case score <= -0.15:
		return news.SentimentBearish
	default:
		return news.SentimentNeutral
	}
}

func (acc *accumulator) articleRefs(n int) []ArticleRef {
	sorted := make([]member, len(acc.members))
	copy(sorted, acc.members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].article.EventTime().After(sorted[j].article.EventTime())
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	refs := make([]ArticleRef, 0, len(sorted))
	for _, m := range sorted {
		refs = append(refs, ArticleRef{
			ID:          m.article.ID,
			Title:       m.article.Title,
			Source:      m.article.Source,
			URL:         m.article.URL,
			PublishedAt: m.article.PublishedAt,
			Sentiment:   m.article.Sentiment,
			Importance:  m.article.Importance,
		})
	}
	return refs
}

// clusterID derives a stable identifier from the stable key. Previously
// assigned ids from state take precedence so dashboards can track a story
// across rebuilds.
func clusterID(stableKey string) string {
	sum := sha256.Sum256([]byte(stableKey))
	return "cl-" + hex.EncodeToString(sum[:8])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

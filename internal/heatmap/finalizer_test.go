package heatmap

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

// clusterFrom assigns and finalizes a single group of articles with no
// previous state.
func clusterFrom(t *testing.T, articles []news.SourceArticle, labels map[string]news.EventLabel, now time.Time) Cluster {
	t.Helper()
	accs := assignArticles(articles, labels, now)
	clusters := finalizeClusters(accs, nil, now)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	return clusters[0]
}

func TestFinalizeHeatBoundsAndMonotonicity(t *testing.T) {
	now := time.Now().UTC()

	small := make([]news.SourceArticle, 0, 2)
	large := make([]news.SourceArticle, 0, 5)
	for i := 0; i < 5; i++ {
		a := articleAt(now, fmt.Sprintf("a%d", i), "Bitcoin ETF sees record inflows", 0)
		a.Source = fmt.Sprintf("source-%d", i)
		if i < 2 {
			small = append(small, a)
		}
		large = append(large, a)
	}

	cSmall := clusterFrom(t, small, nil, now)
	cLarge := clusterFrom(t, large, nil, now)

	for _, c := range []Cluster{cSmall, cLarge} {
		if c.HeatScore <= 0 || c.HeatScore >= 100 {
			t.Errorf("heat = %v, want within (0, 100)", c.HeatScore)
		}
		if c.HeatScore != round2(c.HeatScore) {
			t.Errorf("heat = %v, want 2-decimal rounding", c.HeatScore)
		}
	}
	if cLarge.HeatScore <= cSmall.HeatScore {
		t.Errorf("5-article heat %v not above 2-article heat %v", cLarge.HeatScore, cSmall.HeatScore)
	}
	if cSmall.Velocity != 0 {
		t.Errorf("velocity without previous state = %v, want 0", cSmall.Velocity)
	}
}

func TestFinalizeVelocityAgainstPreviousState(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Bitcoin ETF sees record inflows", 0),
		articleAt(now, "a2", "Bitcoin ETF sees record inflows", time.Hour),
	}

	accs := assignArticles(articles, nil, now)
	prev := map[string]storage.StateSnapshot{
		accs[0].stableKey: {HeatScore: 10, ClusterID: "cl-previous"},
	}

	clusters := finalizeClusters(accs, prev, now)
	c := clusters[0]
	if want := round2(c.HeatScore - 10); c.Velocity != want {
		t.Errorf("velocity = %v, want %v", c.Velocity, want)
	}
	if c.ID != "cl-previous" {
		t.Errorf("ID = %q, want previous id reused", c.ID)
	}
}

func TestFinalizeVelocityFallsBackToOriginalKey(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Bitcoin ETF sees record inflows", 0),
	}

	accs := assignArticles(articles, nil, now)
	prev := map[string]storage.StateSnapshot{
		accs[0].originalKey: {HeatScore: 5, ClusterID: "cl-original"},
	}

	c := finalizeClusters(accs, prev, now)[0]
	if want := round2(c.HeatScore - 5); c.Velocity != want {
		t.Errorf("velocity = %v, want %v (original-key fallback)", c.Velocity, want)
	}
	if c.ID != "cl-original" {
		t.Errorf("ID = %q, want id from original-key snapshot", c.ID)
	}
}

func TestFinalizeDerivedClusterID(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Bitcoin ETF sees record inflows", 0),
	}

	first := clusterFrom(t, articles, nil, now)
	second := clusterFrom(t, articles, nil, now)

	if !strings.HasPrefix(first.ID, "cl-") || len(first.ID) != len("cl-")+16 {
		t.Errorf("ID = %q, want cl- prefix plus 16 hex chars", first.ID)
	}
	if first.ID != second.ID {
		t.Errorf("derived ID not deterministic: %q vs %q", first.ID, second.ID)
	}
}

func TestFinalizeTopicSelection(t *testing.T) {
	now := time.Now().UTC()

	// Weighted vote wins when labels are present.
	voted := clusterFrom(t,
		[]news.SourceArticle{articleAt(now, "a1", "Some headline", 0)},
		map[string]news.EventLabel{"a1": {Topic: "Bitcoin ETF approval wave"}},
		now)
	if voted.Topic != "Bitcoin ETF approval wave" {
		t.Errorf("topic = %q, want the voted label topic", voted.Topic)
	}

	// Without labels the newest title wins, publisher suffix stripped.
	titled := clusterFrom(t,
		[]news.SourceArticle{
			articleAt(now, "b1", "Dollar rallies as yields jump - Reuters", 0),
			articleAt(now, "b2", "Dollar rallies as yields jump today", 2*time.Hour),
		},
		nil, now)
	if titled.Topic != "Dollar rallies as yields jump" {
		t.Errorf("topic = %q, want newest cleaned title", titled.Topic)
	}

	// No labels and no usable title leaves the placeholder.
	blank := clusterFrom(t,
		[]news.SourceArticle{articleAt(now, "c1", "", 0)},
		nil, now)
	if blank.Topic != fallbackTopic {
		t.Errorf("topic = %q, want %q", blank.Topic, fallbackTopic)
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name     string
		up, down int
		velocity float64
		want     news.Trend
	}{
		{"vote up overrides velocity", 3, 1, -10, news.TrendUp},
		{"vote down overrides velocity", 0, 2, 10, news.TrendDown},
		{"velocity up", 1, 0, 3, news.TrendUp},
		{"velocity down", 0, 0, -3.5, news.TrendDown},
		{"neutral", 1, 0, 2.9, news.TrendNeutral},
	}
	for _, tt := range tests {
		acc := &accumulator{trendVotes: map[news.Trend]int{
			news.TrendUp:   tt.up,
			news.TrendDown: tt.down,
		}}
		if got := acc.classifyTrend(tt.velocity); got != tt.want {
			t.Errorf("%s: classifyTrend = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		name           string
		heat           float64
		critical, high int
		votes          map[news.Urgency]int
		want           news.Urgency
	}{
		{"heat critical", 85, 0, 0, nil, news.UrgencyCritical},
		{"two critical members", 10, 2, 0, nil, news.UrgencyCritical},
		{"heat high", 65, 0, 0, nil, news.UrgencyHigh},
		{"one critical member", 10, 1, 0, nil, news.UrgencyHigh},
		{"four high members", 10, 0, 4, nil, news.UrgencyHigh},
		{"heat medium", 35, 0, 0, nil, news.UrgencyMedium},
		{"plurality vote", 10, 0, 1, map[news.Urgency]int{news.UrgencyMedium: 2, news.UrgencyLow: 1}, news.UrgencyMedium},
		{"default low", 10, 0, 0, nil, news.UrgencyLow},
	}
	for _, tt := range tests {
		acc := &accumulator{
			importanceTally: map[news.Importance]int{
				news.ImportanceCritical: tt.critical,
				news.ImportanceHigh:     tt.high,
			},
			urgencyVotes: tt.votes,
		}
		if got := acc.classifyUrgency(tt.heat); got != tt.want {
			t.Errorf("%s: classifyUrgency = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFinalizeSentiment(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Bitcoin ETF sees record inflows", 0),
		articleAt(now, "a2", "Bitcoin ETF sees record inflows", 0),
		articleAt(now, "a3", "Bitcoin ETF sees record inflows", 0),
	}
	articles[0].Sentiment = news.SentimentBullish
	articles[1].Sentiment = news.SentimentBullish
	articles[2].Sentiment = news.SentimentBearish

	c := clusterFrom(t, articles, nil, now)
	if math.Abs(c.SentimentScore-0.33) > 1e-9 {
		t.Errorf("sentiment score = %v, want 0.33", c.SentimentScore)
	}
	if c.Sentiment != news.SentimentBullish {
		t.Errorf("sentiment = %v, want BULLISH", c.Sentiment)
	}
}

func TestSentimentLabelThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  news.Sentiment
	}{
		{0.15, news.SentimentBullish},
		{0.14, news.SentimentNeutral},
		{-0.14, news.SentimentNeutral},
		{-0.15, news.SentimentBearish},
		{0, news.SentimentNeutral},
	}
	for _, tt := range tests {
		if got := sentimentLabel(tt.score); got != tt.want {
			t.Errorf("sentimentLabel(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestTopKeywordsBoostAndFilter(t *testing.T) {
	acc := &accumulator{
		tokenWeights:   map[string]float64{"alpha": 1.0, "beta": 0.9, "ai": 5},
		keywordWeights: map[string]float64{"beta": 0.2},
	}

	got := acc.topKeywords(maxKeywords)
	// beta: 0.9 + 0.2*1.35 = 1.17 outranks alpha; "ai" is too short for
	// display even though it tokenizes.
	want := []string{"beta", "alpha"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("topKeywords = %v, want %v", got, want)
	}
}

func TestFinalizeOrderingAndRefs(t *testing.T) {
	now := time.Now().UTC()
	mk := func(id, title, source string, age time.Duration) news.SourceArticle {
		a := articleAt(now, id, title, age)
		a.Source = source
		return a
	}
	articles := []news.SourceArticle{
		mk("a1", "Bitcoin ETF inflows surge record", time.Hour),
		mk("a2", "Bitcoin ETF inflows surge record", 2*time.Hour),
		mk("a3", "Bitcoin ETF inflows surge record", 3*time.Hour),
		mk("b1", "Nvidia earnings beat estimates", time.Hour),
		mk("b2", "Nvidia earnings beat estimates", 2*time.Hour),
		mk("c1", "Opec announces production curbs", time.Hour),
	}
	for i := range articles {
		articles[i].Source = fmt.Sprintf("source-%s", articles[i].ID)
	}

	accs := assignArticles(articles, nil, now)
	clusters := finalizeClusters(accs, nil, now)
	if len(clusters) != 3 {
		t.Fatalf("got %d clusters, want 3", len(clusters))
	}

	for i := 1; i < len(clusters); i++ {
		if clusters[i].HeatScore > clusters[i-1].HeatScore {
			t.Errorf("clusters not sorted by heat: %v before %v", clusters[i-1].HeatScore, clusters[i].HeatScore)
		}
	}
	if got := clusters[0].ArticleCount; got != 3 {
		t.Errorf("hottest cluster articles = %d, want 3", got)
	}

	top := clusters[0]
	if len(top.Articles) != 3 {
		t.Fatalf("article refs = %d, want 3", len(top.Articles))
	}
	if top.Articles[0].ID != "a1" {
		t.Errorf("newest ref = %q, want a1", top.Articles[0].ID)
	}
	if !strings.Contains(top.Summary, "3 articles from 3 sources") {
		t.Errorf("summary = %q, want counts included", top.Summary)
	}
	if top.FreshnessMinutes != 60 {
		t.Errorf("freshness = %d minutes, want 60", top.FreshnessMinutes)
	}
}

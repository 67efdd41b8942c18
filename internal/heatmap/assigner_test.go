package heatmap

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

// articleAt builds a minimal article aged relative to now. Tests adjust the
// remaining fields directly.
func articleAt(now time.Time, id, title string, age time.Duration) news.SourceArticle {
	return news.SourceArticle{
		ID:         id,
		Title:      title,
		Source:     "wire",
		CreatedAt:  now.Add(-age),
		Categories: []string{news.CategoryCrypto},
		Sentiment:  news.SentimentNeutral,
		Importance: news.ImportanceMedium,
	}
}

func TestArticleWeight(t *testing.T) {
	now := time.Now().UTC()

	fresh := articleAt(now, "a1", "Bitcoin ETF approved", 0)
	if w := articleWeight(fresh, now); math.Abs(w-1.0) > 1e-9 {
		t.Errorf("fresh medium neutral weight = %v, want 1.0", w)
	}

	critical := fresh
	critical.Importance = news.ImportanceCritical
	if w := articleWeight(critical, now); math.Abs(w-2.4) > 1e-9 {
		t.Errorf("critical weight = %v, want 2.4", w)
	}

	bullish := fresh
	bullish.Sentiment = news.SentimentBullish
	if w := articleWeight(bullish, now); math.Abs(w-1.22) > 1e-9 {
		t.Errorf("bullish weight = %v, want 1.22", w)
	}

	old := articleAt(now, "a2", "Bitcoin ETF approved", 10*time.Hour)
	if articleWeight(old, now) >= articleWeight(fresh, now) {
		t.Error("older article should weigh less than a fresh one")
	}

	future := fresh
	pub := now.Add(time.Hour)
	future.PublishedAt = &pub
	if w := articleWeight(future, now); math.Abs(w-1.0) > 1e-9 {
		t.Errorf("future-dated weight = %v, want 1.0 (age clamped)", w)
	}
}

func TestAssignIdenticalArticlesFormOneCluster(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Bitcoin ETF sees record inflows", 0),
		articleAt(now, "a2", "Bitcoin ETF sees record inflows", time.Hour),
		articleAt(now, "a3", "Bitcoin ETF sees record inflows", 2*time.Hour),
	}

	accs := assignArticles(articles, nil, now)
	if len(accs) != 1 {
		t.Fatalf("got %d accumulators, want 1", len(accs))
	}
	if got := len(accs[0].members); got != 3 {
		t.Errorf("members = %d, want 3", got)
	}

	// Seed keys must stabilize deterministically: a second run over the same
	// input lands on the same key despite fresh seed UUIDs.
	again := assignArticles(articles, nil, now)
	if accs[0].stableKey != again[0].stableKey {
		t.Errorf("stable key changed across runs: %q vs %q", accs[0].stableKey, again[0].stableKey)
	}
	want := "CRYPTO:bitcoin-etf-inflows-record-sees"
	if accs[0].stableKey != want {
		t.Errorf("stableKey = %q, want %q", accs[0].stableKey, want)
	}
	if !strings.HasPrefix(accs[0].originalKey, seedKeyPrefix) {
		t.Errorf("originalKey = %q, want a %q key", accs[0].originalKey, seedKeyPrefix)
	}
}

func TestAssignLabeledExactKeyWins(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Spot fund inflows accelerate rapidly", 0),
		articleAt(now, "a2", "Digital asset product demand climbs", time.Hour),
	}
	labels := map[string]news.EventLabel{
		"a1": {Topic: "Bitcoin ETF approval"},
		"a2": {Topic: "Bitcoin ETF approval"},
	}

	accs := assignArticles(articles, labels, now)
	if len(accs) != 1 {
		t.Fatalf("got %d accumulators, want 1 (exact label key match)", len(accs))
	}
	want := "CRYPTO:bitcoin-etf-approval"
	if accs[0].originalKey != want {
		t.Errorf("originalKey = %q, want %q", accs[0].originalKey, want)
	}
	if accs[0].stableKey != want {
		t.Errorf("stableKey = %q, want %q", accs[0].stableKey, want)
	}
	if accs[0].labeled != 2 {
		t.Errorf("labeled = %d, want 2", accs[0].labeled)
	}
}

func TestAssignSimilarityThresholds(t *testing.T) {
	now := time.Now().UTC()
	// a and b overlap in 4 of 6 tokens (jaccard 0.67, above 0.34); c shares
	// only two tokens with the merged cluster (2 of 9, below 0.34).
	articles := []news.SourceArticle{
		articleAt(now, "a", "Bitcoin ETF inflows record surge", 0),
		articleAt(now, "b", "Bitcoin ETF inflows record pace", time.Hour),
		articleAt(now, "c", "Bitcoin mining difficulty hits record", 2*time.Hour),
	}

	accs := assignArticles(articles, nil, now)
	if len(accs) != 2 {
		t.Fatalf("got %d accumulators, want 2", len(accs))
	}
	if got := len(accs[0].members); got != 2 {
		t.Errorf("first cluster members = %d, want 2", got)
	}
	if got := len(accs[1].members); got != 1 {
		t.Errorf("second cluster members = %d, want 1", got)
	}
}

func TestAssignCategoryIsolation(t *testing.T) {
	now := time.Now().UTC()
	a := articleAt(now, "a1", "Regulator opens inquiry into leverage", 0)
	b := articleAt(now, "a2", "Regulator opens inquiry into leverage", time.Hour)
	b.Categories = []string{news.CategoryEquities}

	accs := assignArticles([]news.SourceArticle{a, b}, nil, now)
	if len(accs) != 2 {
		t.Fatalf("got %d accumulators, want 2 (categories never mix)", len(accs))
	}
}

func TestStableKeyFromVotedTopic(t *testing.T) {
	now := time.Now().UTC()
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Confusing headline words here", 0),
		articleAt(now, "a2", "Confusing headline words here", time.Hour),
	}
	labels := map[string]news.EventLabel{
		"a2": {Topic: "Payment processor outage hits exchanges"},
	}

	accs := assignArticles(articles, labels, now)
	if len(accs) != 1 {
		t.Fatalf("got %d accumulators, want 1", len(accs))
	}
	want := "CRYPTO:payment-processor-outage-hits-exchanges"
	if accs[0].stableKey != want {
		t.Errorf("stableKey = %q, want %q", accs[0].stableKey, want)
	}
	if !strings.HasPrefix(accs[0].originalKey, seedKeyPrefix) {
		t.Errorf("originalKey = %q, want seed key preserved", accs[0].originalKey)
	}
}

func TestAssignMergesSameStableKey(t *testing.T) {
	now := time.Now().UTC()
	// a1 seeds an unlabeled cluster; a2 joins it by overlap and votes a
	// topic; a3 shares nothing lexically so it opens a labeled cluster under
	// the same topic. Stabilization must fold both into one.
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Validators restart stalled chain cluster", 0),
		articleAt(now, "a2", "Validators restart stalled chain again", time.Hour),
		articleAt(now, "a3", "Token prices slide on disruption worries", 2*time.Hour),
	}
	labels := map[string]news.EventLabel{
		"a2": {Topic: "Solana network outage", Keywords: []string{"validators", "restart"}},
		"a3": {Topic: "Solana network outage"},
	}

	accs := assignArticles(articles, labels, now)
	if len(accs) != 1 {
		t.Fatalf("got %d accumulators, want 1 after stable-key merge", len(accs))
	}
	acc := accs[0]
	if acc.stableKey != "CRYPTO:solana-network-outage" {
		t.Errorf("stableKey = %q, want %q", acc.stableKey, "CRYPTO:solana-network-outage")
	}
	if len(acc.members) != 3 {
		t.Errorf("members = %d, want 3", len(acc.members))
	}
	if acc.labeled != 2 {
		t.Errorf("labeled = %d, want 2", acc.labeled)
	}
}

func TestAssignLabelScoreBoostMatches(t *testing.T) {
	now := time.Now().UTC()
	// No lexical overlap at all; the label keyword set against the first
	// cluster's tokens scores 3/7 * 1.1 ≈ 0.47, above the labeled floor.
	articles := []news.SourceArticle{
		articleAt(now, "a1", "Exchange halts withdrawals citing congestion", 0),
		articleAt(now, "a2", "Trading venue pauses transfers temporarily", time.Hour),
	}
	labels := map[string]news.EventLabel{
		"a2": {
			Topic:    "Exchange withdrawal freeze",
			Keywords: []string{"exchange", "withdrawals", "congestion"},
		},
	}

	accs := assignArticles(articles, labels, now)
	if len(accs) != 1 {
		t.Fatalf("got %d accumulators, want 1 (label keywords should bridge)", len(accs))
	}
	if got := len(accs[0].members); got != 2 {
		t.Errorf("members = %d, want 2", got)
	}
}

func TestJaccard(t *testing.T) {
	set := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	weights := map[string]float64{"b": 1, "c": 1, "d": 1}

	if got := jaccard(set, weights); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("jaccard = %v, want 0.5", got)
	}
	if got := jaccard(nil, weights); got != 0 {
		t.Errorf("jaccard(nil, w) = %v, want 0", got)
	}
	if got := jaccard(set, map[string]float64{"x": 1}); got != 0 {
		t.Errorf("disjoint jaccard = %v, want 0", got)
	}
}

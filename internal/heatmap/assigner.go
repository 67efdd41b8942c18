package heatmap

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

const (
	seedKeyPrefix = "seed:"

	// Similarity acceptance floors. Labeled articles get a lower bar since
	// the label key already anchors them to a category.
	labeledMatchThreshold   = 0.26
	unlabeledMatchThreshold = 0.34

	// labelScoreBoost favors keyword overlap over raw lexical overlap when a
	// label is available.
	labelScoreBoost = 1.1
)

type member struct {
	article news.SourceArticle
	weight  float64
	label   *news.EventLabel
}

// accumulator collects articles belonging to one topic while assignment runs.
// originalKey is the key the accumulator was created under, stableKey the
// deterministic key computed afterwards; both are kept so velocity lookups
// can fall back to the pre-stabilization identity.
type accumulator struct {
	originalKey string
	stableKey   string
	category    string

	members []member

	tokenWeights    map[string]float64
	keywordWeights  map[string]float64
	topicVotes      map[string]float64
	trendVotes      map[news.Trend]int
	urgencyVotes    map[news.Urgency]int
	importanceTally map[news.Importance]int
	sources         map[string]struct{}

	weightSum    float64
	sentimentSum float64
	labeled      int

	firstSeen time.Time
	lastSeen  time.Time
}

func newAccumulator(category string, label *news.EventLabel) *accumulator {
	key := seedKeyPrefix + uuid.NewString()
	if label != nil && slugify(label.Topic) != "" {
		key = labelKey(category, label.Topic)
	}
	return &accumulator{
		originalKey:     key,
		category:        category,
		tokenWeights:    map[string]float64{},
		keywordWeights:  map[string]float64{},
		topicVotes:      map[string]float64{},
		trendVotes:      map[news.Trend]int{},
		urgencyVotes:    map[news.Urgency]int{},
		importanceTally: map[news.Importance]int{},
		sources:         map[string]struct{}{},
	}
}

func labelKey(category, topic string) string {
	return category + ":" + slugify(topic)
}

// assignArticles clusters articles into accumulators. Articles are expected
// newest first. Labeled articles join an accumulator with the exact same
// label key unconditionally; everything else falls through to similarity
// matching within the article's category, or seeds a fresh accumulator.
func assignArticles(articles []news.SourceArticle, labels map[string]news.EventLabel, now time.Time) []*accumulator {
	var accs []*accumulator
	byLabelKey := make(map[string]*accumulator)

	for _, a := range articles {
		tokens := tokenizeArticle(a)
		weight := articleWeight(a, now)
		category := a.PrimaryCategory()

		var label *news.EventLabel
		if l, ok := labels[a.ID]; ok {
			label = &l
		}

		if label != nil {
			if acc, ok := byLabelKey[labelKey(category, label.Topic)]; ok {
				acc.absorb(a, weight, tokens, label)
				continue
			}
		}

		if acc := bestMatch(accs, category, tokens, label); acc != nil {
			acc.absorb(a, weight, tokens, label)
			continue
		}

		acc := newAccumulator(category, label)
		acc.absorb(a, weight, tokens, label)
		accs = append(accs, acc)
		if label != nil && !strings.HasPrefix(acc.originalKey, seedKeyPrefix) {
			byLabelKey[acc.originalKey] = acc
		}
	}

	stabilize(accs)
	return mergeByStableKey(accs)
}

// bestMatch scores the article against every accumulator in its category and
// returns the best one above the acceptance threshold, or nil.
func bestMatch(accs []*accumulator, category string, tokens []string, label *news.EventLabel) *accumulator {
	articleSet := toSet(tokens)
	threshold := unlabeledMatchThreshold
	var labelSet map[string]struct{}
	if label != nil {
		labelSet = labelTokenSet(label)
		threshold = labeledMatchThreshold
	}

	var best *accumulator
	bestScore := 0.0
	for _, acc := range accs {
		if acc.category != category {
			continue
		}
		score := jaccard(articleSet, acc.tokenWeights)
		if labelSet != nil {
			if ls := jaccard(labelSet, acc.tokenWeights) * labelScoreBoost; ls > score {
				score = ls
			}
		}
		if score > bestScore {
			bestScore = score
			best = acc
		}
	}
	if best == nil || bestScore <= threshold {
		return nil
	}
	return best
}

func (acc *accumulator) absorb(a news.SourceArticle, weight float64, tokens []string, label *news.EventLabel) {
	acc.members = append(acc.members, member{article: a, weight: weight, label: label})
	for _, tok := range tokens {
		acc.tokenWeights[tok] += weight
	}
	acc.weightSum += weight
	acc.sentimentSum += weight * a.Sentiment.Score()
	acc.importanceTally[a.Importance]++
	acc.sources[a.Source] = struct{}{}

	et := a.EventTime()
	if acc.firstSeen.IsZero() || et.Before(acc.firstSeen) {
		acc.firstSeen = et
	}
	if et.After(acc.lastSeen) {
		acc.lastSeen = et
	}

	if label == nil {
		return
	}
	acc.labeled++
	acc.topicVotes[label.Topic] += weight
	acc.trendVotes[label.Trend]++
	acc.urgencyVotes[label.Urgency]++
	for _, kw := range label.Keywords {
		if tok := normalizeToken(kw); tok != "" {
			acc.keywordWeights[tok] += weight
		}
	}
}

// stabilize replaces random seed keys with deterministic ones so the same
// story maps to the same key across rebuilds.
func stabilize(accs []*accumulator) {
	for _, acc := range accs {
		acc.stableKey = acc.originalKey
		if strings.HasPrefix(acc.originalKey, seedKeyPrefix) {
			acc.stableKey = acc.category + ":" + acc.stableSuffix()
		}
	}
}

func (acc *accumulator) stableSuffix() string {
	if topic, ok := acc.votedTopic(); ok {
		if slug := slugify(topic); slug != "" {
			return slug
		}
	}
	if len(acc.tokenWeights) > 0 {
		return strings.Join(acc.topTokensAlpha(6), "-")
	}
	sum := sha256.Sum256([]byte(acc.members[0].article.ID))
	return hex.EncodeToString(sum[:8])
}

// votedTopic returns the highest weighted label topic longer than five
// characters, preferring the lexicographically smaller one on ties.
func (acc *accumulator) votedTopic() (string, bool) {
	best := ""
	bestWeight := 0.0
	for topic, w := range acc.topicVotes {
		if w <= 0 || len(topic) <= 5 {
			continue
		}
		if w > bestWeight || (w == bestWeight && (best == "" || topic < best)) {
			best, bestWeight = topic, w
		}
	}
	return best, best != ""
}

// topTokensAlpha picks the n heaviest tokens and returns them sorted
// alphabetically for a reproducible key.
func (acc *accumulator) topTokensAlpha(n int) []string {
	toks := make([]string, 0, len(acc.tokenWeights))
	for tok := range acc.tokenWeights {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool {
		wi, wj := acc.tokenWeights[toks[i]], acc.tokenWeights[toks[j]]
		if wi != wj {
			return wi > wj
		}
		return toks[i] < toks[j]
	})
	if len(toks) > n {
		toks = toks[:n]
	}
	sort.Strings(toks)
	return toks
}

// mergeByStableKey folds accumulators that stabilized to the same key into
// one, preserving first-seen order.
func mergeByStableKey(accs []*accumulator) []*accumulator {
	merged := make([]*accumulator, 0, len(accs))
	byKey := make(map[string]*accumulator, len(accs))
	for _, acc := range accs {
		dst, ok := byKey[acc.stableKey]
		if !ok {
			byKey[acc.stableKey] = acc
			merged = append(merged, acc)
			continue
		}
		dst.merge(acc)
	}
	return merged
}

func (acc *accumulator) merge(other *accumulator) {
	acc.members = append(acc.members, other.members...)
	for tok, w := range other.tokenWeights {
		acc.tokenWeights[tok] += w
	}
	for kw, w := range other.keywordWeights {
		acc.keywordWeights[kw] += w
	}
	for topic, w := range other.topicVotes {
		acc.topicVotes[topic] += w
	}
	for tr, n := range other.trendVotes {
		acc.trendVotes[tr] += n
	}
	for u, n := range other.urgencyVotes {
		acc.urgencyVotes[u] += n
	}
	for imp, n := range other.importanceTally {
		acc.importanceTally[imp] += n
	}
	for src := range other.sources {
		acc.sources[src] = struct{}{}
	}
	acc.weightSum += other.weightSum
	acc.sentimentSum += other.sentimentSum
	acc.labeled += other.labeled
	if other.firstSeen.Before(acc.firstSeen) {
		acc.firstSeen = other.firstSeen
	}
	if other.lastSeen.After(acc.lastSeen) {
		acc.lastSeen = other.lastSeen
	}
}

// labelTokenSet is the comparison set for label-aware matching: normalized
// keywords plus the fragments of the slugged topic.
func labelTokenSet(label *news.EventLabel) map[string]struct{} {
	set := make(map[string]struct{})
	for _, kw := range label.Keywords {
		if tok := normalizeToken(kw); tok != "" {
			set[tok] = struct{}{}
		}
	}
	for _, frag := range strings.Split(slugify(label.Topic), "-") {
		if frag != "" {
			set[frag] = struct{}{}
		}
	}
	return set
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(set map[string]struct{}, weights map[string]float64) float64 {
	if len(set) == 0 || len(weights) == 0 {
		return 0
	}
	inter := 0
	for tok := range set {
		if _, ok := weights[tok]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	union := len(set) + len(weights) - inter
	return float64(inter) / float64(union)
}

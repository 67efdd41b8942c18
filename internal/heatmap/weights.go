package heatmap

import (
	"math"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

// recencyHalfScale controls how fast article influence decays; at 9 hours an
// article retains 1/e of its initial weight.
const recencyHalfScale = 9.0

var importanceWeights = map[news.Importance]float64{
	news.ImportanceCritical: 2.4,
	news.ImportanceHigh:     1.65,
	news.ImportanceMedium:   1.0,
	news.ImportanceLow:      0.8,
}

// articleWeight combines exponential recency decay, editorial importance and
// a mild boost for directional sentiment. Future-dated articles count as
// age zero.
func articleWeight(a news.SourceArticle, now time.Time) float64 {
	ageHours := now.Sub(a.EventTime()).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recency := math.Exp(-ageHours / recencyHalfScale)

	importance, ok := importanceWeights[a.Importance]
	if !ok {
		importance = importanceWeights[news.ImportanceMedium]
	}

	boost := 1 + 0.22*math.Abs(a.Sentiment.Score())
	return recency * importance * boost
}

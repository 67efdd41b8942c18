package heatmap

import (
	"context"
	"fmt"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

const (
	defaultBucketHours = 2
	maxBucketHours     = 24
)

// GetTimeline aggregates heat history into fixed-width buckets aligned to
// multiples of the bucket width. A cold store triggers exactly one forced
// build before the single re-read; an empty result after that is returned
// as-is.
func (s *Service) GetTimeline(ctx context.Context, hours, bucketHours int, category string) (*Timeline, error) {
	if hours <= 0 {
		hours = defaultHours
	}
	if hours > maxHours {
		hours = maxHours
	}
	if bucketHours <= 0 {
		bucketHours = defaultBucketHours
	}
	if bucketHours > maxBucketHours {
		bucketHours = maxBucketHours
	}
	category = news.NormalizeCategoryFilter(category)

	now := time.Now().UTC()
	from := now.Add(-time.Duration(hours) * time.Hour)
	to := now

	rows, err := s.store.HistoryBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("reading heat history: %w", err)
	}
	if len(rows) == 0 {
		if _, err := s.GetHeatmap(ctx, Options{Hours: hours, Category: category, Force: true}); err != nil {
			return nil, err
		}
		// Observation timestamps round to whole seconds; push the bound past
		// the rows the build just appended.
		to = time.Now().UTC().Add(time.Second)
		rows, err = s.store.HistoryBetween(from, to)
		if err != nil {
			return nil, fmt.Errorf("reading heat history: %w", err)
		}
	}

	if category != news.CategoryAll {
		filtered := rows[:0]
		for _, row := range rows {
			if row.Category == category {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	points := bucketize(rows, from, to, bucketHours)
	if points == nil {
		points = []TimelinePoint{}
	}
	return &Timeline{
		GeneratedAt: now,
		Hours:       hours,
		BucketHours: bucketHours,
		Category:    category,
		Points:      points,
	}, nil
}

type bucketAgg struct {
	heatSum      float64
	articles     int
	observations int
	catHeatSum   map[string]float64
	catCount     map[string]int
}

// bucketize folds observations into width-aligned buckets spanning the
// window. Buckets without observations are emitted with zero values so
// charts keep a continuous axis.
func bucketize(rows []storage.HistoryRow, from, to time.Time, bucketHours int) []TimelinePoint {
	if len(rows) == 0 {
		return nil
	}
	width := time.Duration(bucketHours) * time.Hour

	aggs := make(map[time.Time]*bucketAgg)
	for _, row := range rows {
		start := row.ObservedAt.UTC().Truncate(width)
		agg, ok := aggs[start]
		if !ok {
			agg = &bucketAgg{catHeatSum: map[string]float64{}, catCount: map[string]int{}}
			aggs[start] = agg
		}
		agg.heatSum += row.HeatScore
		agg.articles += row.ArticleCount
		agg.observations++
		agg.catHeatSum[row.Category] += row.HeatScore
		agg.catCount[row.Category]++
	}

	var points []TimelinePoint
	for start := from.Truncate(width); start.Before(to); start = start.Add(width) {
		point := TimelinePoint{BucketStart: start}
		if agg, ok := aggs[start]; ok {
			point.MeanHeat = round2(agg.heatSum / float64(agg.observations))
			point.ArticleCount = agg.articles
			point.Observations = agg.observations
			point.ByCategory = make(map[string]float64, len(agg.catHeatSum))
			for cat, sum := range agg.catHeatSum {
				point.ByCategory[cat] = round2(sum / float64(agg.catCount[cat]))
			}
		}
		points = append(points, point)
	}
	return points
}

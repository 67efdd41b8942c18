package storage

import (
	"fmt"
	"time"
)

// HistoryBetween returns observations with from <= observed_at < to, oldest
// first. Malformed rows are skipped individually.
func (s *Store) HistoryBetween(from, to time.Time) ([]HistoryRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, topic_key, cluster_id, category, heat_score, article_count, source_count, sentiment_score, velocity, observed_at
		FROM heatmap_history
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY observed_at ASC`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var results []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var observedAt string
		if err := rows.Scan(&r.ID, &r.TopicKey, &r.ClusterID, &r.Category, &r.HeatScore,
			&r.ArticleCount, &r.SourceCount, &r.SentimentScore, &r.Velocity, &observedAt); err != nil {
			continue
		}
		t, err := time.Parse(time.RFC3339, observedAt)
		if err != nil {
			continue
		}
		r.ObservedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

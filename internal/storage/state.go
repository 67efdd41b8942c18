package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// PreviousState returns the state snapshots updated within lookback, keyed
// by topic key. Rows that fail to scan or carry an unparsable timestamp are
// skipped so one bad row cannot poison a build.
func (s *Store) PreviousState(lookback time.Duration) (map[string]StateSnapshot, error) {
	result := make(map[string]StateSnapshot)
	if s == nil || s.db == nil {
		return result, nil
	}

	cutoff := time.Now().UTC().Add(-lookback).Format(time.RFC3339)
	rows, err := s.db.Query(`
		SELECT topic_key, cluster_id, heat_score, velocity, sentiment_score, article_count, llm_coverage, updated_at
		FROM heatmap_state WHERE updated_at >= ?`, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("querying previous state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var snap StateSnapshot
		var updatedAt string
		if err := rows.Scan(&snap.TopicKey, &snap.ClusterID, &snap.HeatScore, &snap.Velocity,
			&snap.SentimentScore, &snap.ArticleCount, &snap.LLMCoverage, &updatedAt); err != nil {
			continue
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			continue
		}
		snap.UpdatedAt = t
		result[snap.TopicKey] = snap
	}
	return result, rows.Err()
}

// StateByKey returns the current snapshot for one topic key.
func (s *Store) StateByKey(topicKey string) (StateSnapshot, error) {
	if s == nil || s.db == nil {
		return StateSnapshot{}, ErrNotFound
	}

	var snap StateSnapshot
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT topic_key, cluster_id, heat_score, velocity, sentiment_score, article_count, llm_coverage, updated_at
		FROM heatmap_state WHERE topic_key = ?`, topicKey,
	).Scan(&snap.TopicKey, &snap.ClusterID, &snap.HeatScore, &snap.Velocity,
		&snap.SentimentScore, &snap.ArticleCount, &snap.LLMCoverage, &updatedAt)
	if err == sql.ErrNoRows {
		return StateSnapshot{}, ErrNotFound
	}
	if err != nil {
		return StateSnapshot{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return StateSnapshot{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	snap.UpdatedAt = t
	return snap, nil
}

// SaveBuild persists the outcome of one successful heatmap build: state
// upserts, history observations, and retention cleanup run in a single
// transaction so a crash never leaves state and history disagreeing.
func (s *Store) SaveBuild(states []StateSnapshot, observations []HistoryRow, stateRetention, historyRetention time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning build transaction: %w", err)
	}
	defer tx.Rollback()

	for _, snap := range states {
		updated := snap.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		if _, err := tx.Exec(`
			INSERT INTO heatmap_state (topic_key, cluster_id, heat_score, velocity, sentiment_score, article_count, llm_coverage, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(topic_key) DO UPDATE SET
				cluster_id = excluded.cluster_id,
				heat_score = excluded.heat_score,
				velocity = excluded.velocity,
				sentiment_score = excluded.sentiment_score,
				article_count = excluded.article_count,
				llm_coverage = excluded.llm_coverage,
				updated_at = excluded.updated_at`,
			snap.TopicKey, snap.ClusterID, snap.HeatScore, snap.Velocity,
			snap.SentimentScore, snap.ArticleCount, snap.LLMCoverage,
			updated.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("upserting state %s: %w", snap.TopicKey, err)
		}
	}

	for _, obs := range observations {
		observed := obs.ObservedAt
		if observed.IsZero() {
			observed = now
		}
		if _, err := tx.Exec(`
			INSERT INTO heatmap_history (topic_key, cluster_id, category, heat_score, article_count, source_count, sentiment_score, velocity, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			obs.TopicKey, obs.ClusterID, obs.Category, obs.HeatScore,
			obs.ArticleCount, obs.SourceCount, obs.SentimentScore, obs.Velocity,
			observed.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("recording history for %s: %w", obs.TopicKey, err)
		}
	}

	stateCutoff := now.Add(-stateRetention).Format(time.RFC3339)
	if _, err := tx.Exec(`DELETE FROM heatmap_state WHERE updated_at < ?`, stateCutoff); err != nil {
		return fmt.Errorf("pruning stale state: %w", err)
	}

	historyCutoff := now.Add(-historyRetention).Format(time.RFC3339)
	if _, err := tx.Exec(`DELETE FROM heatmap_history WHERE observed_at < ?`, historyCutoff); err != nil {
		return fmt.Errorf("pruning stale history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing build: %w", err)
	}
	return nil
}

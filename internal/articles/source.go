package articles

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PuerkitoBio/goquery"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

const (
	defaultWindowHours = 24
	defaultListLimit   = 200
)

// Source reads the shared articles table populated by the ingest subsystem.
// That table is not owned here: it may be missing entirely on a fresh
// database, and every read degrades to an empty result when it is.
type Source struct {
	db *sql.DB
}

// NewSource wraps a database handle. A nil handle yields a source whose
// reads all return empty.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	Hours      int
	Limit      int
	Source     string
	Importance string
	Sentiment  string
	Category   string
}

// RecentArticles returns up to limit articles whose event time falls within
// the last hours hours, newest first.
func (s *Source) RecentArticles(ctx context.Context, hours, limit int) ([]news.SourceArticle, error) {
	return s.List(ctx, Filter{Hours: hours, Limit: limit})
}

// List returns filtered articles, newest first. Categories are matched in
// memory after normalization so raw rows carrying aliases ("stocks") still
// land under their canonical filter ("EQUITIES").
func (s *Source) List(ctx context.Context, f Filter) ([]news.SourceArticle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if f.Hours <= 0 {
		f.Hours = defaultWindowHours
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}

	wantCategory := news.NormalizeCategoryFilter(f.Category)

	// Category resolution happens in memory, so category-scoped listings
	// over-fetch to keep the post-filter result near the requested limit.
	sqlLimit := f.Limit
	if wantCategory != news.CategoryAll {
		sqlLimit = f.Limit * 4
	}

	cutoff := time.Now().UTC().Add(-time.Duration(f.Hours) * time.Hour).Format(time.RFC3339)

	q := sq.Select(
		"id", "title", "snippet", "summary", "source", "url",
		"published_at", "created_at", "categories", "tags", "sentiment", "importance",
	).
		From("articles").
		Where(sq.Expr("COALESCE(NULLIF(published_at, ''), created_at) >= ?", cutoff)).
		OrderBy("COALESCE(NULLIF(published_at, ''), created_at) DESC").
		Limit(uint64(sqlLimit))

	if f.Source != "" {
		q = q.Where(sq.Eq{"source": f.Source})
	}
	if f.Importance != "" {
		q = q.Where(sq.Eq{"importance": string(news.ParseImportance(f.Importance))})
	}
	if f.Sentiment != "" {
		q = q.Where(sq.Eq{"sentiment": string(news.ParseSentiment(f.Sentiment))})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building articles query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTable(err) {
			slog.Debug("articles table absent, returning empty set")
			return nil, nil
		}
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var out []news.SourceArticle
	for rows.Next() {
		a, ok := scanArticle(rows)
		if !ok {
			continue
		}
		if wantCategory != news.CategoryAll && a.PrimaryCategory() != wantCategory {
			continue
		}
		out = append(out, a)
		if len(out) >= f.Limit {
			break
		}
	}
	return out, rows.Err()
}

// scanArticle converts one row, reporting ok=false for rows too broken to
// use. A bad published_at degrades to the created_at fallback; a bad
// created_at drops the row.
func scanArticle(rows *sql.Rows) (news.SourceArticle, bool) {
	var (
		a                                       news.SourceArticle
		snippet, summary, source, url           sql.NullString
		publishedAt, createdAt                  sql.NullString
		categories, tags, sentiment, importance sql.NullString
	)
	if err := rows.Scan(&a.ID, &a.Title, &snippet, &summary, &source, &url,
		&publishedAt, &createdAt, &categories, &tags, &sentiment, &importance); err != nil {
		return news.SourceArticle{}, false
	}

	created, err := time.Parse(time.RFC3339, createdAt.String)
	if err != nil {
		return news.SourceArticle{}, false
	}
	a.CreatedAt = created

	if publishedAt.Valid && publishedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, publishedAt.String); err == nil {
			a.PublishedAt = &t
		}
	}

	a.Snippet = stripMarkup(snippet.String)
	a.Summary = stripMarkup(summary.String)
	a.Source = source.String
	a.URL = url.String
	a.Categories = parseStringList(categories.String)
	a.Tags = parseStringList(tags.String)
	a.Sentiment = news.ParseSentiment(sentiment.String)
	a.Importance = news.ParseImportance(importance.String)
	return a, true
}

// parseStringList reads a JSON array stored as text, tolerating the legacy
// comma-separated form some ingest versions wrote.
func parseStringList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripMarkup flattens HTML fragments that slip through ingest into plain
// text with single spaces.
func stripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

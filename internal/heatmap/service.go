package heatmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/doctadg/perpstrader-sub004/internal/news"
	"github.com/doctadg/perpstrader-sub004/internal/storage"
)

const (
	defaultHours = 24
	maxHours     = 168
	defaultLimit = 60
	maxLimit     = 300

	defaultTTL              = 15 * time.Second
	defaultScanCap          = 1500
	defaultStateLookback    = 96 * time.Hour
	defaultStateRetention   = 10 * 24 * time.Hour
	defaultHistoryRetention = 14 * 24 * time.Hour
)

// ArticleSource yields recent articles for clustering, newest first.
type ArticleSource interface {
	RecentArticles(ctx context.Context, hours, limit int) ([]news.SourceArticle, error)
}

// Labeler batches articles through an LLM for event labels. Implementations
// degrade to an empty map rather than block or fail the build.
type Labeler interface {
	Enabled() bool
	ModelName() string
	BatchEventLabels(ctx context.Context, articles []news.SourceArticle) map[string]news.EventLabel
}

// Options controls one heatmap request. Zero values take defaults; out of
// range values are clamped.
type Options struct {
	Hours    int
	Limit    int
	Category string
	Force    bool
	ScanCap  int
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	CacheTTL         time.Duration
	ScanCap          int
	StateLookback    time.Duration
	StateRetention   time.Duration
	HistoryRetention time.Duration
}

type cacheEntry struct {
	result  *Result
	builtAt time.Time
}

// Service builds, caches and serves heatmap snapshots. Builds for the same
// window are coalesced; cached results are shared and never mutated.
type Service struct {
	store   *storage.Store
	source  ArticleSource
	labeler Labeler
	logger  *slog.Logger

	ttl              time.Duration
	scanCap          int
	stateLookback    time.Duration
	stateRetention   time.Duration
	historyRetention time.Duration

	group singleflight.Group

	mu      sync.Mutex
	cache   map[string]cacheEntry
	details map[string]Cluster
}

func NewService(store *storage.Store, source ArticleSource, labeler Labeler, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultTTL
	}
	if cfg.ScanCap <= 0 {
		cfg.ScanCap = defaultScanCap
	}
	if cfg.StateLookback <= 0 {
		cfg.StateLookback = defaultStateLookback
	}
	if cfg.StateRetention <= 0 {
		cfg.StateRetention = defaultStateRetention
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = defaultHistoryRetention
	}
	return &Service{
		store:            store,
		source:           source,
		labeler:          labeler,
		logger:           slog.Default().With("component", "heatmap"),
		ttl:              cfg.CacheTTL,
		scanCap:          cfg.ScanCap,
		stateLookback:    cfg.StateLookback,
		stateRetention:   cfg.StateRetention,
		historyRetention: cfg.HistoryRetention,
		cache:            map[string]cacheEntry{},
		details:          map[string]Cluster{},
	}
}

func (s *Service) normalizeOptions(opts Options) Options {
	if opts.Hours <= 0 {
		opts.Hours = defaultHours
	}
	if opts.Hours > maxHours {
		opts.Hours = maxHours
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}
	opts.Category = news.NormalizeCategoryFilter(opts.Category)
	if opts.ScanCap <= 0 {
		opts.ScanCap = s.scanCap
	}
	return opts
}

// cacheKey identifies one buildable window. Limit is intentionally absent:
// the same build serves every limit through projection.
func cacheKey(opts Options) string {
	return fmt.Sprintf("%d:%s:%d", opts.Hours, opts.Category, opts.ScanCap)
}

// GetHeatmap returns the ranked heatmap for the requested window, reusing a
// fresh cached build unless Force is set. Concurrent callers for the same
// window share one build; a build error reaches every waiter.
func (s *Service) GetHeatmap(ctx context.Context, opts Options) (*Result, error) {
	opts = s.normalizeOptions(opts)
	key := cacheKey(opts)

	if !opts.Force {
		if res, ok := s.cachedResult(key); ok {
			return s.project(res, opts), nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A build that finished while this caller queued is fresh enough.
		if !opts.Force {
			if res, ok := s.cachedResult(key); ok {
				return res, nil
			}
		}
		res, err := s.buildHeatmap(ctx, opts)
		if err != nil {
			return nil, err
		}
		s.finishBuild(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return s.project(v.(*Result), opts), nil
}

// Rebuild forces a fresh build for the given window.
func (s *Service) Rebuild(ctx context.Context, opts Options) (*Result, error) {
	opts.Force = true
	return s.GetHeatmap(ctx, opts)
}

// GetClusterDetails returns one cluster by id. A miss triggers a single
// forced rebuild of the requested window before giving up with
// storage.ErrNotFound.
func (s *Service) GetClusterDetails(ctx context.Context, id string, hours int) (*Cluster, error) {
	if c, ok := s.detailFor(id); ok {
		return c, nil
	}
	if _, err := s.GetHeatmap(ctx, Options{Hours: hours, Force: true}); err != nil {
		return nil, err
	}
	if c, ok := s.detailFor(id); ok {
		return c, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Service) detailFor(id string) (*Cluster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.details[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (s *Service) cachedResult(key string) (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok || time.Since(entry.builtAt) >= s.ttl {
		return nil, false
	}
	return entry.result, true
}

func (s *Service) finishBuild(key string, res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{result: res, builtAt: time.Now()}
	details := make(map[string]Cluster, len(res.Clusters))
	for _, c := range res.Clusters {
		details[c.ID] = c
	}
	s.details = details
}

// project adapts a shared build to one request: re-slice to the limit and
// regroup per category. The build itself is never mutated.
func (s *Service) project(res *Result, opts Options) *Result {
	out := *res
	clusters := res.Clusters
	if len(clusters) > opts.Limit {
		clusters = clusters[:opts.Limit]
	}
	out.Clusters = clusters
	out.ByCategory = groupByCategory(clusters)
	return &out
}

func groupByCategory(clusters []Cluster) map[string][]Cluster {
	grouped := make(map[string][]Cluster)
	for _, c := range clusters {
		grouped[c.Category] = append(grouped[c.Category], c)
	}
	return grouped
}

func (s *Service) buildHeatmap(ctx context.Context, opts Options) (*Result, error) {
	started := time.Now()
	now := started.UTC()

	var (
		articles []news.SourceArticle
		prev     map[string]storage.StateSnapshot
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = s.source.RecentArticles(gCtx, opts.Hours, opts.ScanCap)
		if err != nil {
			return fmt.Errorf("loading articles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prev, err = s.store.PreviousState(s.stateLookback)
		if err != nil {
			return fmt.Errorf("loading previous state: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.Category != news.CategoryAll {
		articles = filterByCategory(articles, opts.Category)
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].EventTime().After(articles[j].EventTime())
	})

	var labels map[string]news.EventLabel
	llm := LLMInfo{}
	if s.labeler != nil {
		labels = s.labeler.BatchEventLabels(ctx, articles)
		llm.Enabled = s.labeler.Enabled()
		llm.Model = s.labeler.ModelName()
	}
	llm.LabeledArticles = len(labels)
	if len(articles) > 0 {
		llm.Coverage = round2(float64(len(labels)) / float64(len(articles)))
	}

	accs := assignArticles(articles, labels, now)
	clusters := finalizeClusters(accs, prev, now)

	res := &Result{
		GeneratedAt:   now,
		Hours:         opts.Hours,
		Category:      opts.Category,
		TotalArticles: len(articles),
		TotalClusters: len(clusters),
		Clusters:      clusters,
		ByCategory:    groupByCategory(clusters),
		LLM:           llm,
	}

	states, observations := snapshotRows(clusters, now)
	if err := s.store.SaveBuild(states, observations, s.stateRetention, s.historyRetention); err != nil {
		s.logger.Warn("persisting heatmap state failed", "error", err)
	}

	s.logger.Info("heatmap built",
		"hours", opts.Hours,
		"category", opts.Category,
		"articles", len(articles),
		"clusters", len(clusters),
		"labeled", llm.LabeledArticles,
		"took", time.Since(started))
	return res, nil
}

func filterByCategory(articles []news.SourceArticle, category string) []news.SourceArticle {
	filtered := make([]news.SourceArticle, 0, len(articles))
	for _, a := range articles {
		if articleInCategory(a, category) {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func articleInCategory(a news.SourceArticle, category string) bool {
	if len(a.Categories) == 0 {
		return category == news.CategoryGeneral
	}
	for _, c := range a.Categories {
		if news.NormalizeCategory(c) == category {
			return true
		}
	}
	return false
}

func snapshotRows(clusters []Cluster, now time.Time) ([]storage.StateSnapshot, []storage.HistoryRow) {
	states := make([]storage.StateSnapshot, 0, len(clusters))
	observations := make([]storage.HistoryRow, 0, len(clusters))
	for _, c := range clusters {
		states = append(states, storage.StateSnapshot{
			TopicKey:       c.TopicKey,
			ClusterID:      c.ID,
			HeatScore:      c.HeatScore,
			Velocity:       c.Velocity,
			SentimentScore: c.SentimentScore,
			ArticleCount:   c.ArticleCount,
			LLMCoverage:    c.LLMCoverage,
			UpdatedAt:      now,
		})
		observations = append(observations, storage.HistoryRow{
			TopicKey:       c.TopicKey,
			ClusterID:      c.ID,
			Category:       c.Category,
			HeatScore:      c.HeatScore,
			ArticleCount:   c.ArticleCount,
			SourceCount:    c.SourceCount,
			SentimentScore: c.SentimentScore,
			Velocity:       c.Velocity,
			ObservedAt:     now,
		})
	}
	return states, observations
}

package labeling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

const (
	// DefaultMaxArticles caps how many articles one batched call may carry.
	DefaultMaxArticles = 450
	// DefaultTimeout bounds how long a build waits for labels.
	DefaultTimeout = 8 * time.Second

	breakerThreshold = 2
	cooldownPeriod   = 10 * time.Minute
)

// Adapter turns article batches into event labels through a single batched
// provider call. It protects builds from a slow or flaky backend two ways:
// the call races a deadline (a late result is discarded, the call itself is
// not cancelled), and two consecutive empty outcomes open a cooldown during
// which labeling short-circuits to empty. Breaker state is per instance.
type Adapter struct {
	provider    Provider
	timeout     time.Duration
	maxArticles int
	logger      *slog.Logger

	mu               sync.Mutex
	consecutiveEmpty int
	cooldownUntil    time.Time
}

// New wraps a provider. A nil provider yields a permanently disabled
// adapter, which is still safe to call.
func New(provider Provider, timeout time.Duration, maxArticles int) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	return &Adapter{
		provider:    provider,
		timeout:     timeout,
		maxArticles: maxArticles,
		logger:      slog.Default(),
	}
}

// Enabled reports whether labeling can currently contribute: a provider is
// configured, reachable, and not cooling down.
func (a *Adapter) Enabled() bool {
	if a == nil || a.provider == nil {
		return false
	}
	if a.coolingDown() {
		return false
	}
	return a.provider.Available()
}

// ModelName names the configured model, empty when labeling is disabled.
func (a *Adapter) ModelName() string {
	if a == nil || a.provider == nil {
		return ""
	}
	return a.provider.Model()
}

// BatchEventLabels labels up to maxArticles articles in one provider call,
// keyed by article id. It never returns an error: every failure mode yields
// an empty result and the caller continues lexical-only.
func (a *Adapter) BatchEventLabels(ctx context.Context, articles []news.SourceArticle) map[string]news.EventLabel {
	if a == nil || len(articles) == 0 || !a.Enabled() {
		return nil
	}
	if len(articles) > a.maxArticles {
		articles = articles[:a.maxArticles]
	}

	prompt := buildPrompt(articles)

	type outcome struct {
		labels map[string]news.EventLabel
		err    error
	}
	// Buffered so the provider goroutine can still deliver after the
	// deadline passes and nobody is left to receive.
	ch := make(chan outcome, 1)
	go func() {
		raw, err := a.provider.Complete(ctx, prompt)
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		ch <- outcome{labels: parseLabels(raw)}
	}()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			a.logger.Warn("labeling call failed", "provider", a.provider.Name(), "error", out.err)
			a.recordEmpty()
			return nil
		}
		if len(out.labels) == 0 {
			a.logger.Warn("labeling returned no usable labels", "provider", a.provider.Name())
			a.recordEmpty()
			return nil
		}
		a.recordSuccess()
		return out.labels
	case <-timer.C:
		// The in-flight call keeps running; its late result is dropped.
		a.logger.Warn("labeling timed out, continuing lexical-only",
			"provider", a.provider.Name(), "timeout", a.timeout)
		a.recordEmpty()
		return nil
	case <-ctx.Done():
		// Caller went away. Not evidence of backend health, so the
		// breaker is left untouched.
		return nil
	}
}

func (a *Adapter) coolingDown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Now().Before(a.cooldownUntil)
}

func (a *Adapter) recordEmpty() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveEmpty++
	if a.consecutiveEmpty >= breakerThreshold {
		a.cooldownUntil = time.Now().Add(cooldownPeriod)
		a.logger.Warn("labeling backend cooling down",
			"consecutive_failures", a.consecutiveEmpty, "until", a.cooldownUntil.Format(time.RFC3339))
	}
}

func (a *Adapter) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveEmpty = 0
	a.cooldownUntil = time.Time{}
}

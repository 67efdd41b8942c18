package labeling

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

type fakeProvider struct {
	response  string
	err       error
	delay     time.Duration
	available bool

	mu         sync.Mutex
	calls      int
	lastPrompt string
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Model() string   { return "fake-model" }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt = prompt
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

func testArticles(n int) []news.SourceArticle {
	out := make([]news.SourceArticle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, news.SourceArticle{
			ID:         fmt.Sprintf("art-%03d", i),
			Title:      fmt.Sprintf("Headline number %d", i),
			Snippet:    "something happened in markets",
			Categories: []string{"crypto"},
			CreatedAt:  time.Now().UTC(),
		})
	}
	return out
}

func TestBatchEventLabelsParsesResponse(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		response: `{"labels":[
			{"id":"art-000","topic":"Bitcoin spot ETF approval","trend":"UP","urgency":"HIGH","keywords":["bitcoin","etf","sec"]},
			{"id":"art-001","topic":"Fed holds rates steady","trend":"NEUTRAL","urgency":"MEDIUM","keywords":["fed","rates"]}
		]}`,
	}
	a := New(provider, time.Second, 450)

	labels := a.BatchEventLabels(context.Background(), testArticles(2))
	require.Len(t, labels, 2)

	etf := labels["art-000"]
	assert.Equal(t, "Bitcoin spot ETF approval", etf.Topic)
	assert.Equal(t, news.TrendUp, etf.Trend)
	assert.Equal(t, news.UrgencyHigh, etf.Urgency)
	assert.Equal(t, []string{"bitcoin", "etf", "sec"}, etf.Keywords)

	fed := labels["art-001"]
	assert.Equal(t, news.TrendNeutral, fed.Trend)
	assert.Equal(t, news.UrgencyMedium, fed.Urgency)
}

func TestBatchEventLabelsTimeoutDiscardsLateResult(t *testing.T) {
	provider := &fakeProvider{
		available: true,
		delay:     300 * time.Millisecond,
		response:  `{"labels":[{"id":"art-000","topic":"too late to matter"}]}`,
	}
	a := New(provider, 25*time.Millisecond, 450)

	start := time.Now()
	labels := a.BatchEventLabels(context.Background(), testArticles(1))
	elapsed := time.Since(start)

	assert.Nil(t, labels)
	assert.Less(t, elapsed, 200*time.Millisecond, "deadline should fire well before the provider finishes")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	provider := &fakeProvider{available: true, err: fmt.Errorf("backend down")}
	a := New(provider, time.Second, 450)

	require.True(t, a.Enabled())

	a.BatchEventLabels(context.Background(), testArticles(1))
	assert.True(t, a.Enabled(), "one failure must not open the breaker")

	a.BatchEventLabels(context.Background(), testArticles(1))
	assert.False(t, a.Enabled(), "second consecutive failure opens the breaker")

	// Short-circuited: no further provider traffic while cooling down.
	a.BatchEventLabels(context.Background(), testArticles(1))
	assert.Equal(t, 2, provider.callCount())
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	provider := &fakeProvider{available: true, err: fmt.Errorf("hiccup")}
	a := New(provider, time.Second, 450)

	a.BatchEventLabels(context.Background(), testArticles(1))

	provider.err = nil
	provider.response = `{"labels":[{"id":"art-000","topic":"Oil supply disruption"}]}`
	labels := a.BatchEventLabels(context.Background(), testArticles(1))
	require.Len(t, labels, 1)

	// The earlier failure no longer counts toward the threshold.
	provider.err = fmt.Errorf("hiccup again")
	a.BatchEventLabels(context.Background(), testArticles(1))
	assert.True(t, a.Enabled(), "single failure after a success must not open the breaker")
}

func TestEmptyResponseCountsAsFailure(t *testing.T) {
	provider := &fakeProvider{available: true, response: "I could not label anything, sorry."}
	a := New(provider, time.Second, 450)

	a.BatchEventLabels(context.Background(), testArticles(1))
	a.BatchEventLabels(context.Background(), testArticles(1))
	assert.False(t, a.Enabled())
}

func TestDisabledAdapter(t *testing.T) {
	a := New(nil, time.Second, 450)

	assert.False(t, a.Enabled())
	assert.Empty(t, a.ModelName())
	assert.Nil(t, a.BatchEventLabels(context.Background(), testArticles(3)))
}

func TestBatchCapsArticleCount(t *testing.T) {
	provider := &fakeProvider{available: true, response: `{"labels":[{"id":"art-000","topic":"whatever happened"}]}`}
	a := New(provider, time.Second, 2)

	a.BatchEventLabels(context.Background(), testArticles(3))

	prompt := provider.prompt()
	assert.Contains(t, prompt, "art-000")
	assert.Contains(t, prompt, "art-001")
	assert.NotContains(t, prompt, "art-002")
}

func TestParseLabels(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		raw := "```json\n{\"labels\":[{\"id\":\"a\",\"topic\":\"Gold hits record high\"}]}\n```"
		labels := parseLabels(raw)
		require.Len(t, labels, 1)
		assert.Equal(t, "Gold hits record high", labels["a"].Topic)
	})

	t.Run("prose wrapped", func(t *testing.T) {
		raw := `Here are your labels: {"labels":[{"id":"a","topic":"Yen intervention watch","trend":"up"}]} hope that helps!`
		labels := parseLabels(raw)
		require.Len(t, labels, 1)
		assert.Equal(t, news.TrendUp, labels["a"].Trend)
	})

	t.Run("bad rows skipped", func(t *testing.T) {
		raw := `{"labels":[
			{"id":"","topic":"No id on this one"},
			{"id":"b","topic":"ok"},
			{"id":"c","topic":"Treasury yields spike","keywords":["  YIELDS ",""]}
		]}`
		labels := parseLabels(raw)
		require.Len(t, labels, 1)
		assert.Equal(t, []string{"yields"}, labels["c"].Keywords)
	})

	t.Run("garbage", func(t *testing.T) {
		assert.Nil(t, parseLabels("total nonsense"))
		assert.Nil(t, parseLabels(""))
		assert.Nil(t, parseLabels(`{"labels":[]}`))
	})
}

func TestBuildPromptShape(t *testing.T) {
	longSnippet := strings.Repeat("x", 500)
	arts := []news.SourceArticle{
		{ID: "p1", Title: "First headline", Snippet: longSnippet, Categories: []string{"macro"}},
		{ID: "p2", Title: "Second headline", Summary: "fallback summary text"},
	}

	prompt := buildPrompt(arts)

	assert.Contains(t, prompt, "p1 | ECONOMICS | First headline |")
	assert.Contains(t, prompt, "p2 | GENERAL | Second headline | fallback summary text")
	assert.NotContains(t, prompt, longSnippet, "snippets must be truncated")
	assert.Contains(t, prompt, `"labels"`)
}

func TestNewProviderFactory(t *testing.T) {
	p, err := NewProvider("disabled", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider("openai", "gpt-4o-mini", "sk-test", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "openai", p.Name())
	assert.True(t, p.Available())

	p, err = NewProvider("anthropic", "claude-3-5-haiku-latest", "", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Available(), "anthropic without key is unavailable")

	p, err = NewProvider("ollama", "llama3.2", "", "")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "llama3.2", p.Model())

	_, err = NewProvider("skynet", "", "", "")
	assert.Error(t, err)
}

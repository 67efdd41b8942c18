package heatmap

import (
	"strings"
	"unicode"

	"github.com/doctadg/perpstrader-sub004/internal/news"
)

const (
	maxTokensPerArticle = 30
	fallbackTokenCount  = 6
)

// stopWords are dropped during tokenization unless allow-listed below.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"all": {}, "also": {}, "amid": {}, "an": {}, "and": {}, "announces": {},
	"any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "because": {},
	"been": {}, "before": {}, "being": {}, "below": {}, "between": {},
	"both": {}, "breaking": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "else": {}, "few": {}, "first": {}, "for": {}, "from": {},
	"further": {}, "had": {}, "has": {}, "have": {}, "having": {}, "he": {},
	"her": {}, "here": {}, "hers": {}, "him": {}, "his": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"just": {}, "latest": {}, "live": {}, "market": {}, "markets": {},
	"may": {}, "might": {}, "more": {}, "most": {}, "my": {}, "new": {},
	"news": {}, "no": {}, "nor": {}, "not": {}, "now": {}, "of": {},
	"off": {}, "on": {}, "once": {}, "only": {}, "or": {}, "other": {},
	"our": {}, "out": {}, "over": {}, "own": {}, "report": {}, "reports": {},
	"said": {}, "same": {}, "say": {}, "says": {}, "she": {}, "should": {},
	"so": {}, "some": {}, "such": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "to": {},
	"today": {}, "too": {}, "under": {}, "until": {}, "up": {},
	"update": {}, "us": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "which": {}, "while": {}, "who": {},
	"whom": {}, "why": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// signalTokens are admitted even when shorter than three characters or
// colliding with a stop word. Tickers and macro shorthand carry most of the
// topical signal in finance headlines.
var signalTokens = map[string]struct{}{
	"ada": {}, "ai": {}, "avax": {}, "bnb": {}, "boe": {}, "boj": {},
	"btc": {}, "cpi": {}, "dxy": {}, "ecb": {}, "etf": {}, "eth": {},
	"eu": {}, "ev": {}, "fed": {}, "fomc": {}, "gdp": {}, "imf": {},
	"ipo": {}, "jpy": {}, "ndx": {}, "nfp": {}, "oil": {}, "opec": {},
	"pboc": {}, "pce": {}, "ppi": {}, "qe": {}, "qt": {}, "sec": {},
	"sol": {}, "spx": {}, "uk": {}, "usd": {}, "vix": {}, "war": {},
	"wti": {}, "xrp": {},
}

// tokenizeArticle extracts up to maxTokensPerArticle normalized tokens from
// an article. Title, snippet and summary contribute individual words, tags
// contribute whole values, and all-caps title sequences are kept as ticker
// candidates. Articles whose every word is filtered out fall back to the
// leading title words so they can still cluster.
func tokenizeArticle(a news.SourceArticle) []string {
	seen := make(map[string]struct{}, maxTokensPerArticle)
	tokens := make([]string, 0, maxTokensPerArticle)

	add := func(raw string, relaxed bool) {
		if len(tokens) >= maxTokensPerArticle {
			return
		}
		tok := normalizeToken(raw)
		if tok == "" || !admitToken(tok, relaxed) {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, field := range []string{a.Title, a.Snippet, a.Summary} {
		for _, word := range strings.Fields(field) {
			add(word, false)
		}
	}
	// Tags are curated upstream and every all-caps title run already looks
	// like a ticker, so both skip the length floor.
	for _, tag := range a.Tags {
		add(tag, true)
	}
	for _, tick := range titleTickers(a.Title) {
		add(tick, true)
	}

	if len(tokens) == 0 {
		tokens = fallbackTokens(a.Title)
	}
	return tokens
}

// normalizeToken lowercases a raw word, removes quote characters and strips
// leading/trailing punctuation. Hash, plus and minus survive at the edges so
// symbols like "#btc" and "c+" keep their shape.
func normalizeToken(raw string) string {
	tok := strings.ToLower(strings.TrimSpace(raw))
	if tok == "" {
		return ""
	}
	tok = strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '`', '‘', '’', '“', '”':
			return -1
		}
		return r
	}, tok)
	return strings.TrimFunc(tok, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return false
		}
		return r != '#' && r != '+' && r != '-'
	})
}

func admitToken(tok string, relaxed bool) bool {
	if isAllDigits(tok) {
		return false
	}
	if _, ok := signalTokens[tok]; ok {
		return true
	}
	if !relaxed && len(tok) < 3 {
		return false
	}
	if _, ok := stopWords[tok]; ok {
		return false
	}
	return true
}

func isAllDigits(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// titleTickers pulls 2-8 letter all-caps sequences out of a title. They come
// back lowercased and still pass through normal admission.
func titleTickers(title string) []string {
	var ticks []string
	for _, field := range strings.Fields(title) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		if len(word) < 2 || len(word) > 8 {
			continue
		}
		upper := true
		for i := 0; i < len(word); i++ {
			if word[i] < 'A' || word[i] > 'Z' {
				upper = false
				break
			}
		}
		if upper {
			ticks = append(ticks, strings.ToLower(word))
		}
	}
	return ticks
}

// fallbackTokens keeps the first few substantial title words, skipping the
// usual admission filters.
func fallbackTokens(title string) []string {
	var tokens []string
	for _, word := range strings.Fields(title) {
		tok := normalizeToken(word)
		if len(tok) <= 3 {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == fallbackTokenCount {
			break
		}
	}
	return tokens
}

// slugify reduces free text to a lowercase hyphen-separated key fragment.
func slugify(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lower))
	pendingDash := false
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteRune('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

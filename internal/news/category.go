package news

import "strings"

// Canonical market categories. Anything unrecognized folds into GENERAL so
// that cluster keys stay comparable across ingest sources that disagree on
// taxonomy.
const (
	CategoryCrypto      = "CRYPTO"
	CategoryEquities    = "EQUITIES"
	CategoryEconomics   = "ECONOMICS"
	CategoryGeopolitics = "GEOPOLITICS"
	CategoryCommodities = "COMMODITIES"
	CategoryTech        = "TECH"
	CategoryRegulation  = "REGULATION"
	CategoryGeneral     = "GENERAL"

	// CategoryAll is a filter value only, never assigned to an article.
	CategoryAll = "ALL"
)

var canonicalCategories = map[string]struct{}{
	CategoryCrypto:      {},
	CategoryEquities:    {},
	CategoryEconomics:   {},
	CategoryGeopolitics: {},
	CategoryCommodities: {},
	CategoryTech:        {},
	CategoryRegulation:  {},
	CategoryGeneral:     {},
}

var categoryAliases = map[string]string{
	"POLITICS":       CategoryGeopolitics,
	"GEOPOLITICAL":   CategoryGeopolitics,
	"WAR":            CategoryGeopolitics,
	"FX":             CategoryEconomics,
	"FOREX":          CategoryEconomics,
	"RATES":          CategoryEconomics,
	"MACRO":          CategoryEconomics,
	"ECONOMY":        CategoryEconomics,
	"ENERGY":         CategoryCommodities,
	"OIL":            CategoryCommodities,
	"METALS":         CategoryCommodities,
	"COMMODITY":      CategoryCommodities,
	"STOCKS":         CategoryEquities,
	"STOCK":          CategoryEquities,
	"EQUITY":         CategoryEquities,
	"MARKETS":        CategoryEquities,
	"CRYPTOCURRENCY": CategoryCrypto,
	"BITCOIN":        CategoryCrypto,
	"DEFI":           CategoryCrypto,
	"TECHNOLOGY":     CategoryTech,
	"AI":             CategoryTech,
	"REGULATORY":     CategoryRegulation,
	"SEC":            CategoryRegulation,
}

// NormalizeCategory folds a raw category string into the canonical set.
func NormalizeCategory(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return CategoryGeneral
	}
	if _, ok := canonicalCategories[c]; ok {
		return c
	}
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	return CategoryGeneral
}

// NormalizeCategoryFilter is NormalizeCategory for request parameters: empty
// and "ALL" mean no filtering.
func NormalizeCategoryFilter(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" || c == CategoryAll {
		return CategoryAll
	}
	return NormalizeCategory(raw)
}

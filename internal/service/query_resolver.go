package service

import (
	"context"
	"regexp"
	"strings"

	"trackfetch/internal/metrics"
	"trackfetch/internal/model"
	"trackfetch/pkg/logger"

	"go.uber.org/zap"
)

const trackSeparator = " - "

var (
	queryPunctuation = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	queryWhitespace  = regexp.MustCompile(`\s+`)
)

// SearchStatus tags how a search ended
type SearchStatus int

const (
	SearchFound SearchStatus = iota
	SearchNoResults
	SearchKeysExhausted
	SearchFailed
)

func (s SearchStatus) String() string {
	switch s {
	case SearchFound:
		return "found"
	case SearchNoResults:
		return "no_results"
	case SearchKeysExhausted:
		return "keys_exhausted"
	case SearchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SearchResult is the outcome of a search. Videos is only non-empty for SearchFound,
// Err is set for SearchFailed and SearchKeysExhausted.
type SearchResult struct {
	Status SearchStatus
	Videos []model.VideoResult
	Query  string // variant that produced Videos
	Err    error
}

// VideoSearcher runs one query variant against the search API
type VideoSearcher interface {
	SearchVariant(ctx context.Context, query string, limit int) SearchResult
}

// QueryVariants derives the queries to try for a user query, most specific first:
// the raw query, a punctuation-stripped form, the part after the last " - "
// (track name) and the part before the first " - " (artist). Empty and repeated
// variants are dropped.
func QueryVariants(raw string) []string {
	variants := []string{raw}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}

	cleaned := queryPunctuation.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(queryWhitespace.ReplaceAllString(cleaned, " "))
	add(cleaned)

	if i := strings.LastIndex(raw, trackSeparator); i >= 0 {
		add(strings.TrimSpace(raw[i+len(trackSeparator):]))
	}
	if i := strings.Index(raw, trackSeparator); i >= 0 {
		add(strings.TrimSpace(raw[:i]))
	}

	return variants
}

// QueryResolver drives a VideoSearcher through query variants until one yields results
type QueryResolver struct {
	searcher VideoSearcher
}

// NewQueryResolver creates a new query resolver
func NewQueryResolver(searcher VideoSearcher) *QueryResolver {
	return &QueryResolver{searcher: searcher}
}

// Search tries each variant in order and stops at the first non-empty result set.
// Exhausted keys end the search immediately since every later variant would hit the same pool.
func (r *QueryResolver) Search(ctx context.Context, query string, limit int) SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{Status: SearchNoResults}
	}

	variants := QueryVariants(query)
	var lastErr error

	for i, variant := range variants {
		res := r.searcher.SearchVariant(ctx, variant, limit)

		switch res.Status {
		case SearchFound:
			logger.Logger.Info("Video search resolved",
				zap.String("query", query),
				zap.String("variant", variant),
				zap.Int("attempt", i+1),
				zap.Int("results", len(res.Videos)))
			metrics.QueryVariantsTried.Observe(float64(i + 1))
			metrics.SearchOutcomes.WithLabelValues(res.Status.String()).Inc()
			res.Query = variant
			return res
		case SearchKeysExhausted:
			metrics.QueryVariantsTried.Observe(float64(i + 1))
			metrics.SearchOutcomes.WithLabelValues(res.Status.String()).Inc()
			return res
		case SearchFailed:
			lastErr = res.Err
		}

		if ctx.Err() != nil {
			break
		}
	}

	metrics.QueryVariantsTried.Observe(float64(len(variants)))
	metrics.SearchOutcomes.WithLabelValues(SearchNoResults.String()).Inc()
	logger.Logger.Info("Video search found nothing",
		zap.String("query", query),
		zap.Int("variants", len(variants)),
		zap.NamedError("last_error", lastErr))

	return SearchResult{Status: SearchNoResults, Err: lastErr}
}

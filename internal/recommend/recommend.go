// Package recommend suggests a category for a transaction description by
// comparing it against a reference set of labelled example descriptions.
//
// Scoring is plain Jaccard similarity over whitespace token sets: no
// stemming, no weighting, no index. The reference set is small (hundreds
// of rows) and re-read on every call, so the O(N·L) scan is fine.
package recommend

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxRecommendations caps the number of suggested categories per query.
const MaxRecommendations = 5

// minQueryLen guards against noise on near-empty input: queries of fewer
// characters than this (after trimming) return no suggestions at all.
const minQueryLen = 3

// ErrDatasetUnavailable reports that the reference set could not be read.
// The HTTP layer deliberately collapses it to an empty suggestion list so
// the client-visible contract stays "empty means nothing to suggest".
var ErrDatasetUnavailable = errors.New("reference dataset unavailable")

type (
	// Example is one labelled row of the reference set.
	Example struct {
		Description string
		Category    string
	}

	// Recommendation is a suggested category with its best-matching
	// example and the similarity score in (0, 1].
	Recommendation struct {
		Category string  `json:"category"`
		Score    float64 `json:"score"`
		Example  string  `json:"example"`
	}

	// Source supplies the reference examples. Implementations return
	// ErrDatasetUnavailable (possibly wrapped) when the backing resource
	// is missing or unreadable.
	Source interface {
		Examples(ctx context.Context) ([]Example, error)
	}

	// Recommender scores a query against a Source. The zero value is not
	// usable; construct with New.
	Recommender struct {
		source Source
	}
)

func New(source Source) *Recommender {
	return &Recommender{source: source}
}

// Recommend returns up to MaxRecommendations distinct categories ordered
// by descending score. The ordering is stable: categories that tie keep
// the reference set's order. An empty result is a valid answer, returned
// for short queries and queries with no token overlap.
func (r *Recommender) Recommend(ctx context.Context, description string) ([]Recommendation, error) {
	query := strings.ToLower(strings.TrimSpace(description))
	if utf8.RuneCountInString(query) < minQueryLen {
		return nil, nil
	}

	examples, err := r.source.Examples(ctx)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenSet(query)

	// Best-scoring example per category, preserving first-seen order.
	best := make(map[string]Recommendation, len(examples))
	var order []string
	for _, ex := range examples {
		score := jaccard(queryTokens, tokenSet(strings.ToLower(ex.Description)))
		if score <= 0 {
			continue
		}
		cur, seen := best[ex.Category]
		if !seen {
			order = append(order, ex.Category)
		}
		if !seen || score > cur.Score {
			best[ex.Category] = Recommendation{
				Category: ex.Category,
				Score:    score,
				Example:  strings.ToLower(ex.Description),
			}
		}
	}

	recs := make([]Recommendation, 0, len(order))
	for _, cat := range order {
		recs = append(recs, best[cat])
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs, nil
}

// tokenSet splits on whitespace and collapses duplicates.
func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard is |intersection| / |union| of the two token sets, with 0 for
// empty sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

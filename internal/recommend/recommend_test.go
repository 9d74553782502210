package recommend

import (
	"context"
	"math"
	"reflect"
	"testing"
)

type sliceSource []Example

func (s sliceSource) Examples(ctx context.Context) ([]Example, error) { return s, nil }

type unavailableSource struct{}

func (unavailableSource) Examples(ctx context.Context) ([]Example, error) {
	return nil, ErrDatasetUnavailable
}

var fixture = sliceSource{
	{"koffie en thee", "Materiaal"},
	{"koffie voor training", "Training"},
	{"huur zaal evenement", "Evenement"},
	{"zaal huur", "Evenement"},
	{"printpapier kopen", "Algemeen"},
	{"verzekering", "Overig"},
	{"ballen voor training", "Training"},
}

func TestShortQueryReturnsNothing(t *testing.T) {
	r := New(fixture)
	for _, q := range []string{"", "  ", "ko", " a "} {
		recs, err := r.Recommend(context.Background(), q)
		if err != nil {
			t.Fatalf("%q unexpected error: %v", q, err)
		}
		if len(recs) != 0 {
			t.Fatalf("%q expected empty result, got %v", q, recs)
		}
	}
}

func TestShortQueryCountsCharactersNotBytes(t *testing.T) {
	// "éé" is 2 characters in 4 bytes and must stay under the guard even
	// though the reference set would match it.
	r := New(sliceSource{{"éé bijdrage", "Overig"}})
	recs, err := r.Recommend(context.Background(), "éé")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("2-character query expected empty result, got %v", recs)
	}

	// Three characters clears the guard regardless of byte width.
	recs, err = r.Recommend(context.Background(), "ééé bijdrage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Category != "Overig" {
		t.Fatalf("expected Overig suggestion, got %v", recs)
	}
}

func TestJaccardScoring(t *testing.T) {
	r := New(fixture)
	recs, err := r.Recommend(context.Background(), "koffie")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both koffie categories must appear; {"koffie"} vs 3-token sets
	// scores 1/3 each.
	got := map[string]float64{}
	for _, rec := range recs {
		got[rec.Category] = rec.Score
	}
	for _, cat := range []string{"Materiaal", "Training"} {
		score, ok := got[cat]
		if !ok {
			t.Fatalf("category %s missing from %v", cat, recs)
		}
		if math.Abs(score-1.0/3.0) > 1e-9 {
			t.Fatalf("category %s score = %v, want 1/3", cat, score)
		}
	}
}

func TestBestExamplePerCategory(t *testing.T) {
	r := New(fixture)
	recs, err := r.Recommend(context.Background(), "huur zaal")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Category != "Evenement" {
		t.Fatalf("expected single Evenement suggestion, got %v", recs)
	}
	// "zaal huur" matches perfectly and must win over the 2/3 match.
	if recs[0].Score != 1.0 || recs[0].Example != "zaal huur" {
		t.Fatalf("expected perfect match retained, got %+v", recs[0])
	}
}

func TestResultInvariants(t *testing.T) {
	// More than five categories sharing a token: cap and distinctness.
	var src sliceSource
	for _, cat := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		src = append(src, Example{"contributie " + cat, cat})
	}
	r := New(src)
	recs, err := r.Recommend(context.Background(), "contributie betalen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) > MaxRecommendations {
		t.Fatalf("got %d recommendations, cap is %d", len(recs), MaxRecommendations)
	}
	seen := map[string]bool{}
	for i, rec := range recs {
		if seen[rec.Category] {
			t.Fatalf("duplicate category %s", rec.Category)
		}
		seen[rec.Category] = true
		if rec.Score <= 0 || rec.Score > 1 {
			t.Fatalf("score out of range: %v", rec.Score)
		}
		if i > 0 && recs[i-1].Score < rec.Score {
			t.Fatalf("ranking not monotonic at %d: %v", i, recs)
		}
	}
}

func TestIdempotence(t *testing.T) {
	r := New(fixture)
	first, err := r.Recommend(context.Background(), "koffie voor de training")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Recommend(context.Background(), "koffie voor de training")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between calls:\n%v\n%v", first, second)
	}
}

func TestNoOverlap(t *testing.T) {
	r := New(fixture)
	recs, err := r.Recommend(context.Background(), "xyz123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty result, got %v", recs)
	}
}

func TestDatasetUnavailable(t *testing.T) {
	r := New(unavailableSource{})
	recs, err := r.Recommend(context.Background(), "materiaal kopen")
	if err != ErrDatasetUnavailable {
		t.Fatalf("expected ErrDatasetUnavailable, got %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations alongside error, got %v", recs)
	}
	// Short queries short-circuit before the source is consulted.
	if _, err := r.Recommend(context.Background(), "ko"); err != nil {
		t.Fatalf("short query should not touch the dataset: %v", err)
	}
}

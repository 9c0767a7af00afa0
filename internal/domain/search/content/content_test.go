package content

import (
	"math"
	"testing"
)

func TestSimilarityFromCosineDistance(t *testing.T) {
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 1},
		{1, 0.5},
		{2, 0},
		{2.5, 0},
		{-0.1, 1},
	}
	for _, tc := range tests {
		if got := SimilarityFromCosineDistance(tc.d); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("SimilarityFromCosineDistance(%v) = %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestMaxCosineDistance_Inverse(t *testing.T) {
	for _, minSim := range []float64{0, 0.25, 0.6, 1} {
		d := MaxCosineDistance(minSim)
		if got := SimilarityFromCosineDistance(d); math.Abs(got-minSim) > 1e-9 {
			t.Errorf("min %v: distance %v maps back to %v", minSim, d, got)
		}
	}
}

func TestLawRef(t *testing.T) {
	var none *Law
	if none.Ref() != nil {
		t.Error("nil law must produce nil ref")
	}
	l := &Law{Slug: "constitution-1999", ShortTitle: "Constitution"}
	ref := l.Ref()
	if ref.Slug != "constitution-1999" || ref.ShortTitle != "Constitution" {
		t.Errorf("unexpected ref %+v", ref)
	}
}

func TestRow_MatchText(t *testing.T) {
	tests := []struct {
		body, extra, want string
	}{
		{"body", "", "body"},
		{"", "bail, custody", "bail, custody"},
		{"body", "summary", "body summary"},
	}
	for _, tc := range tests {
		r := Row{Body: tc.body, Extra: tc.extra}
		if got := r.MatchText(); got != tc.want {
			t.Errorf("MatchText(%q, %q) = %q, want %q", tc.body, tc.extra, got, tc.want)
		}
	}
}

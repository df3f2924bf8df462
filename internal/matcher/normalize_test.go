// file: internal/matcher/normalize_test.go
// version: 1.0.0
// guid: 9c1e3b5d-7a0f-4c2e-8b4d-6f8a0c2e4b6d

package matcher

import (
	"math"
	"testing"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Stand", "stand"},
		{"A Wizard of Earthsea", "wizard of earthsea"},
		{"Dune", "dune"},
		{"  Dune:  Messiah!  ", "dune messiah"},
		{"11.22.63", "112263"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Stephen King", "stephen king"},
		{"King, Stephen", "stephen king"},
		{"Stephen King Jr.", "stephen king"},
		{"Tolkien, J.R.R.", "jrr tolkien"},
		{"MARTIN LUTHER KING III", "martin luther king"},
	}
	for _, tt := range tests {
		if got := NormalizeAuthor(tt.in); got != tt.want {
			t.Errorf("NormalizeAuthor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	if s := TitleSimilarity("Dune", "Dune"); s != 1 {
		t.Errorf("identical titles = %v, want 1", s)
	}
	if s := TitleSimilarity("The Stand", "Stand, The"); s < 0.8 {
		t.Errorf("article variants = %v, want >= 0.8", s)
	}
	if s := TitleSimilarity("Dune", "The Wheel of Time"); s > 0.5 {
		t.Errorf("unrelated titles = %v, want <= 0.5", s)
	}
	if s := TitleSimilarity("", "Dune"); s != 0 {
		t.Errorf("empty title = %v, want 0", s)
	}
	// Containment floor: subtitle editions still score high.
	if s := TitleSimilarity("Dune", "Dune: Deluxe Edition"); s < 0.85 {
		t.Errorf("contained title = %v, want >= 0.85", s)
	}
}

func TestAuthorSimilarity(t *testing.T) {
	if s := AuthorSimilarity("Frank Herbert", "Herbert, Frank"); s != 1 {
		t.Errorf("flipped name = %v, want 1", s)
	}
	if s := AuthorSimilarity("Frank Herbert", "Brian Herbert"); s >= 1 {
		t.Errorf("different first names = %v, want < 1", s)
	}
	if s := BestAuthorSimilarity("Frank Herbert", []string{"Kevin J. Anderson", "Frank Herbert"}); s != 1 {
		t.Errorf("best of list = %v, want 1", s)
	}
	if s := BestAuthorSimilarity("Frank Herbert", nil); s != 0 {
		t.Errorf("empty list = %v, want 0", s)
	}
}

func TestTrackCountSimilarity(t *testing.T) {
	tests := []struct {
		group, cand int
		want        float64
	}{
		{12, 12, 1},
		{12, 0, 0.5}, // unknown is neutral
		{0, 12, 0.5},
		{55, 12, 1 - 43.0/55.0},
	}
	for _, tt := range tests {
		got := TrackCountSimilarity(tt.group, tt.cand)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TrackCountSimilarity(%d, %d) = %v, want %v", tt.group, tt.cand, got, tt.want)
		}
	}
}

func TestYearSimilarity(t *testing.T) {
	tests := []struct {
		a, b int
		want float64
	}{
		{1965, 1965, 1},
		{1965, 1967, 0.7},
		{1965, 1970, 0.4},
		{1965, 1990, 0},
		{0, 1965, 0.5},
	}
	for _, tt := range tests {
		if got := YearSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("YearSimilarity(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

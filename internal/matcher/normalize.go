// file: internal/matcher/normalize.go
// version: 1.0.0
// guid: 6a3d9f2b-4e7c-4d1a-b8f6-3c5e7a9b0d2f

package matcher

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Articles stripped from title prefixes before comparison.
var articles = []string{"the ", "a ", "an ", "el ", "la ", "le ", "der ", "die "}

// Author suffixes that never disambiguate two people.
var authorSuffixes = []string{" jr.", " jr", " sr.", " sr", " ii", " iii", " iv"}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeTitle lowercases, strips a leading article and punctuation, and
// collapses whitespace so "The Stand" and "Stand, The" class variants score
// as near-equal.
func NormalizeTitle(title string) string {
	norm := strings.ToLower(strings.TrimSpace(title))
	for _, art := range articles {
		if strings.HasPrefix(norm, art) {
			norm = norm[len(art):]
			break
		}
	}
	norm = nonWordRe.ReplaceAllString(norm, "")
	norm = spaceRe.ReplaceAllString(norm, " ")
	return strings.TrimSpace(norm)
}

// NormalizeAuthor lowercases, removes generational suffixes and flips
// "Last, First" to "First Last".
func NormalizeAuthor(author string) string {
	norm := strings.ToLower(strings.TrimSpace(author))
	for _, suffix := range authorSuffixes {
		norm = strings.TrimSuffix(norm, suffix)
	}
	if idx := strings.Index(norm, ","); idx >= 0 {
		last := strings.TrimSpace(norm[:idx])
		first := strings.TrimSpace(norm[idx+1:])
		if last != "" && first != "" {
			norm = first + " " + last
		}
	}
	norm = nonWordRe.ReplaceAllString(norm, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(norm, " "))
}

var (
	jaroWinkler  = metrics.NewJaroWinkler()
	sorensenDice = metrics.NewSorensenDice()
)

// TitleSimilarity returns a [0,1] similarity of two titles.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	score := 0.4*strutil.Similarity(na, nb, jaroWinkler) +
		0.6*strutil.Similarity(na, nb, sorensenDice)
	// Whole-phrase containment ("11-22-63" inside "11.22.63: A Novel") is a
	// stronger signal than character metrics give it credit for.
	if fuzzy.MatchNormalizedFold(na, nb) || fuzzy.MatchNormalizedFold(nb, na) {
		if score < 0.85 {
			score = 0.85
		}
	}
	return clamp01(score)
}

// AuthorSimilarity returns a [0,1] similarity of two author names.
func AuthorSimilarity(a, b string) float64 {
	na, nb := NormalizeAuthor(a), NormalizeAuthor(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return clamp01(0.6*strutil.Similarity(na, nb, jaroWinkler) +
		0.4*strutil.Similarity(na, nb, sorensenDice))
}

// BestAuthorSimilarity scores a single query author against a candidate's
// author list, taking the best match.
func BestAuthorSimilarity(query string, authors []string) float64 {
	best := 0.0
	for _, a := range authors {
		if s := AuthorSimilarity(query, a); s > best {
			best = s
		}
	}
	return best
}

// TrackCountSimilarity compares a candidate's expected chapter count against
// the group's track count. Unknown counts are neutral rather than penalized.
func TrackCountSimilarity(groupTracks, candidateTracks int) float64 {
	if candidateTracks <= 0 || groupTracks <= 0 {
		return 0.5
	}
	if groupTracks == candidateTracks {
		return 1
	}
	max := groupTracks
	if candidateTracks > max {
		max = candidateTracks
	}
	diff := groupTracks - candidateTracks
	if diff < 0 {
		diff = -diff
	}
	return clamp01(1 - float64(diff)/float64(max))
}

// YearSimilarity tolerates small publication-year drift between editions.
func YearSimilarity(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 1
	case diff <= 2:
		return 0.7
	case diff <= 5:
		return 0.4
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

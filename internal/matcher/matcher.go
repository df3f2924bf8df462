// file: internal/matcher/matcher.go
// version: 1.0.0
// guid: 8e1b5c7d-9f3a-4e6b-8d2c-4a6b8c0d1e3f

package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/provider"
)

// ErrNoCandidates is returned when every provider was unavailable or empty.
var ErrNoCandidates = errors.New("no provider returned candidates")

// Config holds the scoring weights and thresholds. The exact numbers are
// deliberately configuration, not constants.
type Config struct {
	// Score weights; normalized internally so they need not sum to 1.
	TitleWeight      float64
	AuthorWeight     float64
	TrackCountWeight float64
	TrustWeight      float64

	// ConflictSimilarity is the field similarity below which two close
	// candidates disagreeing on a field become an unresolved conflict.
	ConflictSimilarity float64
	// ConflictScoreMargin bounds how far behind the best candidate a
	// disagreeing candidate may score and still raise a conflict.
	ConflictScoreMargin float64
	// ReviewThreshold marks records that must not be auto-applied.
	ReviewThreshold float64

	// OverallTimeout bounds the whole reconciliation; zero means no bound
	// beyond the caller's context.
	OverallTimeout time.Duration
	// CandidateLimit is passed to each provider query.
	CandidateLimit int
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		TitleWeight:         0.5,
		AuthorWeight:        0.3,
		TrackCountWeight:    0.1,
		TrustWeight:         0.1,
		ConflictSimilarity:  0.85,
		ConflictScoreMargin: 0.15,
		ReviewThreshold:     0.65,
		OverallTimeout:      45 * time.Second,
		CandidateLimit:      10,
	}
}

// ScoreCandidate rates one candidate against a work group in [0,1].
func ScoreCandidate(group models.WorkGroup, c models.Candidate, trust float64, cfg Config) float64 {
	wSum := cfg.TitleWeight + cfg.AuthorWeight + cfg.TrackCountWeight + cfg.TrustWeight
	if wSum <= 0 {
		return 0
	}
	title := TitleSimilarity(group.TitleGuess, c.Title)
	author := 0.5 // neutral when the group has no author guess
	if group.AuthorGuess != "" {
		author = BestAuthorSimilarity(group.AuthorGuess, c.Authors)
	}
	tracks := TrackCountSimilarity(len(group.Tracks), c.TrackCount)

	score := cfg.TitleWeight*title +
		cfg.AuthorWeight*author +
		cfg.TrackCountWeight*tracks +
		cfg.TrustWeight*trust
	return clamp01(score / wSum)
}

// scored pairs a candidate with its score and the provider's tie-break rank.
type scored struct {
	cand     models.Candidate
	score    float64
	priority int
}

// providerResult is one provider's contribution to the fan-in.
type providerResult struct {
	name       string
	priority   int
	trust      float64
	candidates []models.Candidate
	err        error
}

// Reconcile queries every enabled provider concurrently, scores the returned
// candidates against the group and merges the winners field by field into one
// record. Provider failures are recorded, never fatal; the result is
// deterministic for fixed provider responses and config.
func Reconcile(ctx context.Context, group models.WorkGroup, reg *provider.Registry, cfg Config) (models.ReconciledRecord, error) {
	var rec models.ReconciledRecord

	entries := reg.Enabled()
	if len(entries) == 0 {
		return rec, fmt.Errorf("reconcile: no providers enabled")
	}

	if cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OverallTimeout)
		defer cancel()
	}

	query := models.Query{
		Title:  group.TitleGuess,
		Author: group.AuthorGuess,
		Series: group.SeriesGuess,
		Limit:  cfg.CandidateLimit,
	}

	// One slot per provider keeps fan-in order independent of completion
	// order, so scoring sees a stable input sequence.
	results := make([]providerResult, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(idx int, e provider.Entry) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, e.Settings.Timeout)
			defer cancel()
			cands, err := e.Adapter.Search(pctx, query)
			results[idx] = providerResult{
				name:       e.Adapter.Name(),
				priority:   e.Settings.Priority,
				trust:      e.Settings.Trust,
				candidates: cands,
				err:        err,
			}
		}(i, e)
	}
	wg.Wait()

	var pool []scored
	for _, r := range results {
		if r.err != nil {
			rec.Unavailable = append(rec.Unavailable, r.name)
			continue
		}
		for _, c := range r.candidates {
			pool = append(pool, scored{
				cand:     c,
				score:    ScoreCandidate(group, c, r.trust, cfg),
				priority: r.priority,
			})
		}
	}
	if len(pool) == 0 {
		rec.NeedsReview = true
		return rec, ErrNoCandidates
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		if pool[i].priority != pool[j].priority {
			return pool[i].priority < pool[j].priority
		}
		return pool[i].cand.ExternalID < pool[j].cand.ExternalID
	})

	mergeFields(&rec, pool, cfg)

	rec.NeedsReview = rec.Confidence < cfg.ReviewThreshold || len(rec.Conflicts) > 0
	return rec, nil
}

// field describes one mergeable output field.
type field struct {
	name string
	get  func(models.Candidate) string
	// set copies the winning candidate's value(s) into the record; it takes
	// the whole candidate so multi-valued fields keep their full list.
	set func(*models.ReconciledRecord, models.Candidate)
	sim func(a, b string) float64
}

func exactSim(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	return 0
}

func yearSim(a, b string) float64 {
	ya, _ := strconv.Atoi(a)
	yb, _ := strconv.Atoi(b)
	return YearSimilarity(ya, yb)
}

var fieldTable = []field{
	{"title", func(c models.Candidate) string { return c.Title },
		func(r *models.ReconciledRecord, c models.Candidate) { r.Title = c.Title }, TitleSimilarity},
	{"author", func(c models.Candidate) string { return c.PrimaryAuthor() },
		func(r *models.ReconciledRecord, c models.Candidate) {
			r.Authors = append([]string(nil), c.Authors...)
		}, AuthorSimilarity},
	{"narrator", func(c models.Candidate) string {
		if len(c.Narrators) == 0 {
			return ""
		}
		return c.Narrators[0]
	},
		func(r *models.ReconciledRecord, c models.Candidate) {
			r.Narrators = append([]string(nil), c.Narrators...)
		}, AuthorSimilarity},
	{"series_name", func(c models.Candidate) string { return c.SeriesName },
		func(r *models.ReconciledRecord, c models.Candidate) { r.SeriesName = c.SeriesName }, TitleSimilarity},
	{"series_index", func(c models.Candidate) string { return c.SeriesIndex },
		func(r *models.ReconciledRecord, c models.Candidate) { r.SeriesIndex = c.SeriesIndex }, exactSim},
	{"year", func(c models.Candidate) string {
		if c.Year <= 0 {
			return ""
		}
		return strconv.Itoa(c.Year)
	},
		func(r *models.ReconciledRecord, c models.Candidate) { r.Year = c.Year }, yearSim},
	{"language", func(c models.Candidate) string { return c.Language },
		func(r *models.ReconciledRecord, c models.Candidate) { r.Language = c.Language }, exactSim},
	{"publisher", func(c models.Candidate) string { return c.Publisher },
		func(r *models.ReconciledRecord, c models.Candidate) { r.Publisher = c.Publisher }, TitleSimilarity},
	{"isbn10", func(c models.Candidate) string { return c.ISBN10 },
		func(r *models.ReconciledRecord, c models.Candidate) { r.ISBN10 = c.ISBN10 }, exactSim},
	{"isbn13", func(c models.Candidate) string { return c.ISBN13 },
		func(r *models.ReconciledRecord, c models.Candidate) { r.ISBN13 = c.ISBN13 }, exactSim},
	{"asin", func(c models.Candidate) string { return c.ASIN },
		func(r *models.ReconciledRecord, c models.Candidate) { r.ASIN = c.ASIN }, exactSim},
	{"cover_url", func(c models.Candidate) string { return c.CoverURL },
		func(r *models.ReconciledRecord, c models.Candidate) { r.CoverURL = c.CoverURL }, exactSim},
}

// mergeFields fills the record from the scored pool. For each field the best
// candidate supplying it wins, unless a near-equal candidate disagrees too
// strongly, in which case the field becomes an unresolved conflict.
func mergeFields(rec *models.ReconciledRecord, pool []scored, cfg Config) {
	rec.FieldSources = make(map[string]string)

	filled := 0
	var scoreSum float64
	for _, f := range fieldTable {
		var best, second *scored
		var bestVal, secondVal string
		for i := range pool {
			v := strings.TrimSpace(f.get(pool[i].cand))
			if v == "" {
				continue
			}
			if best == nil {
				best, bestVal = &pool[i], v
				continue
			}
			if second == nil && !strings.EqualFold(v, bestVal) {
				second, secondVal = &pool[i], v
			}
		}
		if best == nil {
			continue
		}
		if second != nil &&
			second.score >= best.score-cfg.ConflictScoreMargin &&
			f.sim(bestVal, secondVal) < cfg.ConflictSimilarity {
			// cover_url disagreement is cosmetic; covers differ per edition.
			if f.name != "cover_url" {
				rec.Conflicts = append(rec.Conflicts, models.Conflict{
					Field:  f.name,
					Values: []string{bestVal, secondVal},
				})
				continue
			}
		}
		f.set(rec, best.cand)
		rec.FieldSources[f.name] = best.cand.Provider
		scoreSum += best.score
		filled++
	}

	if filled > 0 {
		rec.Confidence = scoreSum / float64(filled)
	}
	total := filled + len(rec.Conflicts)
	if total > 0 && len(rec.Conflicts) > 0 {
		rec.Confidence *= 1 - float64(len(rec.Conflicts))/float64(total)
	}
	rec.Confidence = clamp01(rec.Confidence)
}

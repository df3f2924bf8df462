// file: internal/matcher/matcher_test.go
// version: 1.0.0
// guid: 0d2f4a6c-8e1b-4d3f-9a5c-7b9d1f3a5c7e

package matcher

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/provider"
)

type fakeAdapter struct {
	name  string
	cands []models.Candidate
	err   error
	delay time.Duration
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(ctx context.Context, q models.Query) ([]models.Candidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.cands, f.err
}

func testGroup(tracks int) models.WorkGroup {
	g := models.WorkGroup{
		Dir:         "/lib/dune",
		TitleGuess:  "Dune",
		AuthorGuess: "Frank Herbert",
		DiscCount:   1,
	}
	for i := 1; i <= tracks; i++ {
		g.Tracks = append(g.Tracks, models.Track{Disc: 1, Index: i})
	}
	return g
}

func duneCandidate(providerName, id string) models.Candidate {
	return models.Candidate{
		Provider:   providerName,
		ExternalID: id,
		Title:      "Dune",
		Authors:    []string{"Frank Herbert"},
		Year:       1965,
		TrackCount: 10,
	}
}

func newTestRegistry(t *testing.T, adapters ...*fakeAdapter) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for i, a := range adapters {
		require.NoError(t, reg.Register(a, provider.Settings{
			Enabled:  true,
			Trust:    0.8,
			Priority: i + 1,
		}))
	}
	return reg
}

func TestScoreCandidatePerfectMatch(t *testing.T) {
	g := testGroup(10)
	score := ScoreCandidate(g, duneCandidate("a", "1"), 0.8, DefaultConfig())
	if score < 0.9 {
		t.Errorf("perfect match score = %v, want >= 0.9", score)
	}
}

func TestScoreCandidateTrackCountMismatchLowers(t *testing.T) {
	g := testGroup(12)
	good := duneCandidate("a", "1")
	good.TrackCount = 12
	bad := duneCandidate("a", "2")
	bad.TrackCount = 55

	cfg := DefaultConfig()
	gs := ScoreCandidate(g, good, 0.8, cfg)
	bs := ScoreCandidate(g, bad, 0.8, cfg)
	if bs >= gs {
		t.Errorf("55-chapter candidate (%v) should score below 12-chapter (%v)", bs, gs)
	}
}

func TestScoreCandidateNeutralAuthorWhenNoGuess(t *testing.T) {
	g := testGroup(10)
	g.AuthorGuess = ""
	c := duneCandidate("a", "1")
	score := ScoreCandidate(g, c, 0.8, DefaultConfig())
	// Author contributes its neutral 0.5 instead of 0.
	if score < 0.7 {
		t.Errorf("score without author guess = %v, want >= 0.7", score)
	}
}

func TestReconcileMajorityWins(t *testing.T) {
	g := testGroup(10)
	agreeA := duneCandidate("libA", "1")
	agreeA.Narrators = []string{"Simon Vance"}
	agreeB := duneCandidate("libB", "2")
	odd := models.Candidate{
		Provider:   "libC",
		ExternalID: "3",
		Title:      "Dune",
		Authors:    []string{"Zebulon Quixote"},
	}

	reg := newTestRegistry(t,
		&fakeAdapter{name: "libA", cands: []models.Candidate{agreeA}},
		&fakeAdapter{name: "libB", cands: []models.Candidate{agreeB}},
		&fakeAdapter{name: "libC", cands: []models.Candidate{odd}},
	)

	rec, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.NoError(t, err)

	require.Equal(t, "Dune", rec.Title)
	require.Equal(t, []string{"Frank Herbert"}, rec.Authors)
	require.Empty(t, rec.Conflicts, "low-scoring disagreement must not conflict")
	require.False(t, rec.NeedsReview)
	require.GreaterOrEqual(t, rec.Confidence, 0.8)
	require.Equal(t, []string{"Simon Vance"}, rec.Narrators)
	require.Equal(t, "libA", rec.FieldSources["narrator"])
}

func TestReconcileNearEqualDisagreementConflicts(t *testing.T) {
	g := testGroup(10)
	a := duneCandidate("libA", "1")
	a.Narrators = []string{"Simon Vance"}
	b := duneCandidate("libB", "2")
	b.Narrators = []string{"Scott Brick"}

	reg := newTestRegistry(t,
		&fakeAdapter{name: "libA", cands: []models.Candidate{a}},
		&fakeAdapter{name: "libB", cands: []models.Candidate{b}},
	)

	rec, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rec.Conflicts, 1)
	require.Equal(t, "narrator", rec.Conflicts[0].Field)
	require.ElementsMatch(t, []string{"Simon Vance", "Scott Brick"}, rec.Conflicts[0].Values)
	require.Empty(t, rec.Narrators, "conflicted field must stay unmerged")
	require.True(t, rec.NeedsReview)
	// Agreeing fields still merge.
	require.Equal(t, "Dune", rec.Title)
}

func TestReconcileRecordsUnavailableProviders(t *testing.T) {
	g := testGroup(10)
	reg := newTestRegistry(t,
		&fakeAdapter{name: "libA", cands: []models.Candidate{duneCandidate("libA", "1")}},
		&fakeAdapter{name: "libB", err: errors.New("rate limited")},
	)

	rec, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"libB"}, rec.Unavailable)
	require.Equal(t, "Dune", rec.Title)
}

func TestReconcileAllUnavailable(t *testing.T) {
	g := testGroup(10)
	reg := newTestRegistry(t,
		&fakeAdapter{name: "libA", err: errors.New("down")},
		&fakeAdapter{name: "libB", err: errors.New("down")},
	)

	rec, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.ErrorIs(t, err, ErrNoCandidates)
	require.True(t, rec.NeedsReview)
	require.ElementsMatch(t, []string{"libA", "libB"}, rec.Unavailable)
}

func TestReconcileEmptyResults(t *testing.T) {
	g := testGroup(10)
	reg := newTestRegistry(t, &fakeAdapter{name: "libA"})

	_, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.ErrorIs(t, err, ErrNoCandidates)
}

func TestReconcileDeterministicAcrossCompletionOrder(t *testing.T) {
	g := testGroup(10)
	build := func(delayA, delayB time.Duration) *provider.Registry {
		a := duneCandidate("libA", "1")
		a.Publisher = "Chilton Books"
		b := duneCandidate("libB", "2")
		b.Narrators = []string{"Simon Vance"}
		return newTestRegistry(t,
			&fakeAdapter{name: "libA", cands: []models.Candidate{a}, delay: delayA},
			&fakeAdapter{name: "libB", cands: []models.Candidate{b}, delay: delayB},
		)
	}

	recFast, err := Reconcile(context.Background(), g, build(0, 40*time.Millisecond), DefaultConfig())
	require.NoError(t, err)
	recSlow, err := Reconcile(context.Background(), g, build(40*time.Millisecond, 0), DefaultConfig())
	require.NoError(t, err)

	if !reflect.DeepEqual(recFast, recSlow) {
		t.Errorf("completion order changed the result:\n%+v\n%+v", recFast, recSlow)
	}
}

func TestReconcileProviderTimeoutBecomesUnavailable(t *testing.T) {
	g := testGroup(10)
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(
		&fakeAdapter{name: "slow", cands: []models.Candidate{duneCandidate("slow", "1")}, delay: time.Second},
		provider.Settings{Enabled: true, Trust: 0.8, Priority: 1, Timeout: 20 * time.Millisecond},
	))
	require.NoError(t, reg.Register(
		&fakeAdapter{name: "fast", cands: []models.Candidate{duneCandidate("fast", "2")}},
		provider.Settings{Enabled: true, Trust: 0.8, Priority: 2},
	))

	rec, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"slow"}, rec.Unavailable)
	require.Equal(t, "fast", rec.FieldSources["title"])
}

func TestReconcileNoProvidersEnabled(t *testing.T) {
	g := testGroup(10)
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(&fakeAdapter{name: "off"}, provider.Settings{Enabled: false}))

	_, err := Reconcile(context.Background(), g, reg, DefaultConfig())
	require.Error(t, err)
}

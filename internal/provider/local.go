// file: internal/provider/local.go
// version: 1.0.0
// guid: 1c7e4b9a-8d2f-4a6c-b3e5-0f1a2b3c4d5e

package provider

import (
	"context"
	"strings"

	"github.com/jdfalk/bookbot/internal/models"
)

// LocalAdapter answers from a work group's own embedded tags. It never hits
// the network, so it is always available and acts as the floor the remote
// providers must beat. Configure it with a low trust weight.
type LocalAdapter struct {
	group models.WorkGroup
}

// NewLocal builds a local adapter for one work group.
func NewLocal(group models.WorkGroup) *LocalAdapter {
	return &LocalAdapter{group: group}
}

// Name implements Adapter.
func (a *LocalAdapter) Name() string { return "local" }

// Search implements Adapter. It synthesizes at most one candidate from the
// tags that agree across the group's tracks.
func (a *LocalAdapter) Search(_ context.Context, _ models.Query) ([]models.Candidate, error) {
	c := models.Candidate{
		Provider:   a.Name(),
		Title:      strings.TrimSpace(a.group.TitleGuess),
		TrackCount: len(a.group.Tracks),
	}
	if author := strings.TrimSpace(a.group.AuthorGuess); author != "" {
		c.Authors = []string{author}
	}
	if a.group.SeriesGuess != "" {
		c.SeriesName = a.group.SeriesGuess
		c.SeriesIndex = a.group.VolumeGuess
	}
	for _, t := range a.group.Tracks {
		if c.Narrators == nil && t.Tags.Narrator != "" {
			c.Narrators = []string{t.Tags.Narrator}
		}
		if c.Language == "" && t.Tags.Language != "" {
			c.Language = t.Tags.Language
		}
		if c.ISBN13 == "" && len(t.Tags.ISBN) == 13 {
			c.ISBN13 = t.Tags.ISBN
		}
		if c.ISBN10 == "" && len(t.Tags.ISBN) == 10 {
			c.ISBN10 = t.Tags.ISBN
		}
		if c.ASIN == "" && t.Tags.ASIN != "" {
			c.ASIN = t.Tags.ASIN
		}
	}
	if c.Title == "" {
		return nil, nil
	}
	return []models.Candidate{c}, nil
}

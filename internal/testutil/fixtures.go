// file: internal/testutil/fixtures.go
// version: 1.0.0
// guid: d4e5f6a7-b8c9-0123-def4-56789012abcd

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdfalk/bookbot/internal/models"
)

// WriteFile creates a file with the given content, making parent
// directories as needed.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// MakeGroup builds a work group of n sequential mp3 tracks rooted at dir.
// The files are not created on disk; pair with WriteFile when a test needs
// real paths.
func MakeGroup(dir, title, author string, n int) models.WorkGroup {
	g := models.WorkGroup{
		Dir:         dir,
		TitleGuess:  title,
		AuthorGuess: author,
		DiscCount:   1,
	}
	for i := 1; i <= n; i++ {
		g.Tracks = append(g.Tracks, models.Track{
			Path:   filepath.Join(dir, fmt.Sprintf("%02d - track.mp3", i)),
			Disc:   1,
			Index:  i,
			Format: "mp3",
			Tags: models.TagSet{
				Album:  title,
				Artist: author,
				Track:  i,
			},
		})
	}
	return g
}

// Record builds a reconciled record with sensible defaults for plan tests.
func Record(title, author string) models.ReconciledRecord {
	return models.ReconciledRecord{
		Title:      title,
		Authors:    []string{author},
		Year:       1965,
		Confidence: 0.9,
	}
}

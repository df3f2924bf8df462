// file: internal/models/models.go
// version: 1.0.0
// guid: 4f8a2b1c-9d3e-4c5b-8a7f-1e2d3c4b5a69

package models

import (
	"fmt"
	"sort"
	"strings"
)

// TagSet is a snapshot of the metadata tags embedded in one audio file.
// A zero value means the tag was absent.
type TagSet struct {
	Title       string `json:"title,omitempty"`
	Album       string `json:"album,omitempty"`
	Artist      string `json:"artist,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Narrator    string `json:"narrator,omitempty"`
	Series      string `json:"series,omitempty"`
	SeriesIndex string `json:"series_index,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Date        string `json:"date,omitempty"`
	Language    string `json:"language,omitempty"`
	Track       int    `json:"track,omitempty"`
	Disc        int    `json:"disc,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	ASIN        string `json:"asin,omitempty"`
}

// IsEmpty reports whether no usable tags were read from the file.
func (t TagSet) IsEmpty() bool {
	return t.Title == "" && t.Album == "" && t.Artist == "" &&
		t.AlbumArtist == "" && t.Track == 0 && t.Disc == 0
}

// Track is one physical audio file. Immutable once scanned.
type Track struct {
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration,omitempty"` // seconds, 0 if unknown
	Disc     int     `json:"disc"`
	Index    int     `json:"index"`
	Format   string  `json:"format"` // lowercase extension without dot
	Tags     TagSet  `json:"tags"`
	Checksum string  `json:"checksum,omitempty"` // sha256, hex
	Warnings []string `json:"warnings,omitempty"`
}

// WorkGroup is an ordered set of tracks believed to belong to one audiobook.
type WorkGroup struct {
	Dir         string   `json:"dir"`
	Tracks      []Track  `json:"tracks"`
	DiscCount   int      `json:"disc_count"`
	TitleGuess  string   `json:"title_guess,omitempty"`
	AuthorGuess string   `json:"author_guess,omitempty"`
	SeriesGuess string   `json:"series_guess,omitempty"`
	VolumeGuess string   `json:"volume_guess,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// SortTracks orders the group's tracks by (disc, index, path). Path is the
// final tiebreak so repeated grouping of the same directory is stable.
func (g *WorkGroup) SortTracks() {
	sort.SliceStable(g.Tracks, func(i, j int) bool {
		a, b := g.Tracks[i], g.Tracks[j]
		if a.Disc != b.Disc {
			return a.Disc < b.Disc
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Path < b.Path
	})
}

// ValidateOrder checks per-disc track numbering and returns one warning per
// gap or duplicate found. A non-empty result never makes the group invalid.
func (g *WorkGroup) ValidateOrder() []string {
	var issues []string
	byDisc := make(map[int][]int)
	for _, t := range g.Tracks {
		byDisc[t.Disc] = append(byDisc[t.Disc], t.Index)
	}
	discs := make([]int, 0, len(byDisc))
	for d := range byDisc {
		discs = append(discs, d)
	}
	sort.Ints(discs)
	for _, d := range discs {
		nums := byDisc[d]
		sort.Ints(nums)
		seen := make(map[int]bool, len(nums))
		var dups []int
		for _, n := range nums {
			if seen[n] {
				dups = append(dups, n)
			}
			seen[n] = true
		}
		if len(dups) > 0 {
			issues = append(issues, fmt.Sprintf("disc %d has duplicate track numbers: %v", d, dups))
		}
		contiguous := true
		for i, n := range nums {
			if n != i+1 {
				contiguous = false
				break
			}
		}
		if !contiguous && len(dups) == 0 {
			issues = append(issues, fmt.Sprintf("disc %d has gaps in track numbering: %v", d, nums))
		}
	}
	return issues
}

// Candidate is one provider's answer for a work group. Never mutated after
// creation.
type Candidate struct {
	Provider    string   `json:"provider"`
	ExternalID  string   `json:"external_id,omitempty"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"` // first entry is primary
	Narrators   []string `json:"narrators,omitempty"`
	SeriesName  string   `json:"series_name,omitempty"`
	SeriesIndex string   `json:"series_index,omitempty"`
	Year        int      `json:"year,omitempty"`
	Language    string   `json:"language,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	ISBN10      string   `json:"isbn10,omitempty"`
	ISBN13      string   `json:"isbn13,omitempty"`
	ASIN        string   `json:"asin,omitempty"`
	TrackCount  int      `json:"track_count,omitempty"` // expected chapters/tracks, 0 if unknown
	CoverURL    string   `json:"cover_url,omitempty"`
}

// PrimaryAuthor returns the first author or "".
func (c Candidate) PrimaryAuthor() string {
	if len(c.Authors) == 0 {
		return ""
	}
	return c.Authors[0]
}

// Query is the best-effort identity guess sent to provider adapters.
type Query struct {
	Title  string
	Author string
	Series string
	ISBN   string
	Limit  int
}

// Conflict records a field the reconciler refused to resolve automatically.
type Conflict struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// ReconciledRecord is the merged, scored metadata result for a work group.
type ReconciledRecord struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	Narrators   []string `json:"narrators,omitempty"`
	SeriesName  string   `json:"series_name,omitempty"`
	SeriesIndex string   `json:"series_index,omitempty"`
	Year        int      `json:"year,omitempty"`
	Language    string   `json:"language,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	ISBN10      string   `json:"isbn10,omitempty"`
	ISBN13      string   `json:"isbn13,omitempty"`
	ASIN        string   `json:"asin,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`

	Confidence  float64    `json:"confidence"` // [0,1]
	NeedsReview bool       `json:"needs_review"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
	// FieldSources maps each merged field name to the provider it came from.
	FieldSources map[string]string `json:"field_sources,omitempty"`
	// Unavailable lists providers that errored or timed out.
	Unavailable []string `json:"unavailable,omitempty"`
}

// PrimaryAuthor returns the first merged author or "".
func (r ReconciledRecord) PrimaryAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0]
}

// String renders a short one-line summary for CLI output.
func (r ReconciledRecord) String() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if a := r.PrimaryAuthor(); a != "" {
		b.WriteString(" by ")
		b.WriteString(a)
	}
	if r.SeriesName != "" {
		fmt.Fprintf(&b, " (%s #%s)", r.SeriesName, r.SeriesIndex)
	}
	fmt.Fprintf(&b, " [confidence %.2f]", r.Confidence)
	return b.String()
}

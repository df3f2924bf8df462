// file: internal/grouper/grouper.go
// version: 1.0.0
// guid: 2e5b8c1d-7f4a-4e9b-a6c3-9d0e1f2a3b4c

package grouper

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jdfalk/bookbot/internal/models"
)

var (
	bracketRe     = regexp.MustCompile(`\s*\[.*?\]\s*`)
	parenRe       = regexp.MustCompile(`\s*\(.*?\)\s*`)
	seriesVolRe   = regexp.MustCompile(`(?i)(.+?)\s+(?:book|vol|volume)\s*(\d+)`)
	authorTitleRe = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(.+)$`)
)

// Group partitions scanned tracks into work groups. Every input track lands
// in exactly one group and repeated runs over unchanged input produce
// identical output.
//
// Tracks are clustered by parent directory first. Within a directory,
// agreeing album tags keep the files together; disagreeing non-empty album
// tags split the directory into one group per album, with untagged files
// attached to the album whose filenames they share the longest common prefix
// with.
func Group(tracks []models.Track) []models.WorkGroup {
	byDir := make(map[string][]models.Track)
	var dirs []string
	for _, t := range tracks {
		dir := filepath.Dir(t.Path)
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], t)
	}
	sort.Strings(dirs)

	var groups []models.WorkGroup
	for _, dir := range dirs {
		groups = append(groups, splitDir(dir, byDir[dir])...)
	}
	return groups
}

// splitDir turns one directory's tracks into one or more groups.
func splitDir(dir string, tracks []models.Track) []models.WorkGroup {
	albums := make(map[string][]models.Track)
	var untagged []models.Track
	var albumNames []string
	for _, t := range tracks {
		album := strings.TrimSpace(t.Tags.Album)
		if album == "" {
			untagged = append(untagged, t)
			continue
		}
		if _, ok := albums[album]; !ok {
			albumNames = append(albumNames, album)
		}
		albums[album] = append(albums[album], t)
	}
	sort.Strings(albumNames)

	if len(albumNames) <= 1 {
		all := tracks
		return []models.WorkGroup{buildGroup(dir, all, len(albumNames) == 0)}
	}

	// Disagreeing albums: one group per album, untagged files attach to the
	// album whose tracks share the longest filename prefix.
	for _, t := range untagged {
		best := albumNames[0]
		bestLen := -1
		for _, name := range albumNames {
			l := prefixAffinity(t, albums[name])
			if l > bestLen {
				best, bestLen = name, l
			}
		}
		albums[best] = append(albums[best], t)
	}

	out := make([]models.WorkGroup, 0, len(albumNames))
	for _, name := range albumNames {
		g := buildGroup(dir, albums[name], false)
		if len(albumNames) > 1 {
			g.Warnings = append(g.Warnings,
				fmt.Sprintf("directory holds %d albums; split by album tag", len(albumNames)))
		}
		out = append(out, g)
	}
	return out
}

// prefixAffinity measures how much of t's filename is shared with the
// members of a candidate album group.
func prefixAffinity(t models.Track, members []models.Track) int {
	base := filepath.Base(t.Path)
	best := 0
	for _, m := range members {
		l := commonPrefixLen(base, filepath.Base(m.Path))
		if l > best {
			best = l
		}
	}
	return best
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// buildGroup assembles a WorkGroup: ordering, numbering repair, identity
// guesses and validation warnings.
func buildGroup(dir string, tracks []models.Track, tagless bool) models.WorkGroup {
	g := models.WorkGroup{Dir: dir, Tracks: append([]models.Track(nil), tracks...)}

	// Files the scanner could not number sort to the end of their disc;
	// assign sequential indexes after the highest known number so ordering
	// stays deterministic.
	g.SortTracks()
	maxIdx := 0
	unnumbered := 0
	for _, t := range g.Tracks {
		if t.Index > maxIdx {
			maxIdx = t.Index
		}
		if t.Index == 0 {
			unnumbered++
		}
	}
	if unnumbered > 0 {
		next := maxIdx + 1
		for i := range g.Tracks {
			if g.Tracks[i].Index == 0 {
				g.Tracks[i].Index = next
				next++
			}
		}
		g.SortTracks()
		g.Warnings = append(g.Warnings,
			fmt.Sprintf("%d tracks had no track number; assigned by filename order", unnumbered))
	}

	for _, t := range g.Tracks {
		if t.Disc > g.DiscCount {
			g.DiscCount = t.Disc
		}
	}
	if g.DiscCount == 0 {
		g.DiscCount = 1
	}

	usable := 0
	for _, t := range g.Tracks {
		if !t.Tags.IsEmpty() {
			usable++
		}
	}
	if usable == 0 || tagless {
		g.Warnings = append(g.Warnings, "no usable tags; identity inferred from filenames only")
	}

	guessIdentity(&g)
	g.Warnings = append(g.Warnings, g.ValidateOrder()...)
	return g
}

// guessIdentity fills the group's title/author/series guesses from the folder
// name and any tags that agree across the first few tracks.
func guessIdentity(g *models.WorkGroup) {
	folder := filepath.Base(g.Dir)
	folder = bracketRe.ReplaceAllString(folder, " ")
	folder = parenRe.ReplaceAllString(folder, " ")
	folder = strings.TrimSpace(folder)

	if m := seriesVolRe.FindStringSubmatch(folder); m != nil {
		g.TitleGuess = folder
		g.SeriesGuess = strings.TrimSpace(m[1])
		g.VolumeGuess = m[2]
	} else if m := authorTitleRe.FindStringSubmatch(folder); m != nil {
		g.AuthorGuess = strings.TrimSpace(m[1])
		g.TitleGuess = folder
	}

	// Consistent album/albumartist tags beat folder-name heuristics.
	albums := make(map[string]bool)
	artists := make(map[string]bool)
	albumArtists := make(map[string]bool)
	series := make(map[string]bool)
	limit := len(g.Tracks)
	if limit > 5 {
		limit = 5
	}
	for _, t := range g.Tracks[:limit] {
		if t.Tags.Album != "" {
			albums[t.Tags.Album] = true
		}
		if t.Tags.Artist != "" {
			artists[t.Tags.Artist] = true
		}
		if t.Tags.AlbumArtist != "" {
			albumArtists[t.Tags.AlbumArtist] = true
		}
		if t.Tags.Series != "" {
			series[t.Tags.Series] = true
		}
	}
	if v := single(albums); v != "" {
		g.TitleGuess = v
	}
	if v := single(albumArtists); v != "" {
		g.AuthorGuess = v
	} else if v := single(artists); v != "" && g.AuthorGuess == "" {
		g.AuthorGuess = v
	}
	if v := single(series); v != "" {
		g.SeriesGuess = v
	}
	if g.TitleGuess == "" {
		g.TitleGuess = folder
	}
}

// single returns the sole key of a one-element set, "" otherwise.
func single(set map[string]bool) string {
	if len(set) != 1 {
		return ""
	}
	for k := range set {
		return k
	}
	return ""
}

// file: internal/planner/template.go
// version: 1.0.0
// guid: 3a7d1e5f-8b2c-4d9e-a1f4-6c8b0d2e4f7a

package planner

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jdfalk/bookbot/internal/models"
)

// Case policies for rendered path segments.
const (
	CaseAsIs  = "as-is"
	CaseTitle = "title"
	CaseLower = "lower"
	CaseUpper = "upper"
)

// Naming controls how destination paths are rendered for a work group.
type Naming struct {
	LibraryRoot    string
	FolderTemplate string
	FileTemplate   string
	Case           string // one of the Case* constants
	MaxNameLen     int    // per path segment, 0 means 200
	Force          bool   // allow overwriting existing destinations

	WriteTags  bool
	EmbedCover bool
	Overwrite  string // overwrite | fill_missing | preserve

	TranscodeFormat  string // target extension without dot, "" disables
	TranscodeBitrate string // e.g. "64k"
}

// Profiles are the built-in naming presets. The config layer may override
// any of their templates.
var Profiles = map[string]Naming{
	"default": {
		FolderTemplate: "{Author}/{Title} ({Year})",
		FileTemplate:   "{DiscPad} - {TrackPad} - {TrackTitle}",
	},
	"series": {
		FolderTemplate: "{Author}/{SeriesName}/{SeriesIndex} - {Title}",
		FileTemplate:   "{DiscPad} - {TrackPad} - {TrackTitle}",
	},
	"plex": {
		FolderTemplate: "{Author}/{Title} ({Year})",
		FileTemplate:   "{Title} - {DiscPad} - {TrackPad}",
	},
	"audible": {
		FolderTemplate: "{AuthorLastFirst}/{Title}",
		FileTemplate:   "{ShortTitle} - {DiscPad} - {TrackPad} - {TrackTitle}",
	},
}

var tokenRe = regexp.MustCompile(`\{[A-Za-z]+\}`)

// tokens builds the placeholder values for one track of a group. Disc tokens
// render empty for single-disc works so templates can drop that segment.
func tokens(group models.WorkGroup, rec models.ReconciledRecord, t models.Track, maxTrack int) map[string]string {
	author := rec.PrimaryAuthor()
	if author == "" {
		author = group.AuthorGuess
	}
	if author == "" {
		author = "Unknown Author"
	}
	title := rec.Title
	if title == "" {
		title = group.TitleGuess
	}
	narrator := ""
	if len(rec.Narrators) > 0 {
		narrator = rec.Narrators[0]
	}
	year := ""
	if rec.Year > 0 {
		year = fmt.Sprintf("%d", rec.Year)
	}
	isbn := rec.ISBN13
	if isbn == "" {
		isbn = rec.ISBN10
	}
	trackTitle := t.Tags.Title
	if trackTitle == "" {
		trackTitle = title
	}
	disc, discPad := "", ""
	if group.DiscCount > 1 {
		disc = fmt.Sprintf("%d", t.Disc)
		discPad = fmt.Sprintf("%02d", t.Disc)
	}
	trackWidth := 2
	if maxTrack > 99 {
		trackWidth = 3
	}
	return map[string]string{
		"{Author}":          author,
		"{AuthorLastFirst}": lastFirst(author),
		"{Title}":           title,
		"{ShortTitle}":      shortTitle(title),
		"{SeriesName}":      rec.SeriesName,
		"{SeriesIndex}":     rec.SeriesIndex,
		"{Year}":            year,
		"{Narrator}":        narrator,
		"{Language}":        rec.Language,
		"{ISBN}":            isbn,
		"{Disc}":            disc,
		"{DiscPad}":         discPad,
		"{Track}":           fmt.Sprintf("%d", t.Index),
		"{TrackPad}":        fmt.Sprintf("%0*d", trackWidth, t.Index),
		"{TrackTitle}":      trackTitle,
	}
}

// render expands a template against the token map. Empty values are dropped
// together with their surrounding segment where the template allows it; an
// empty value outside a droppable segment is a TemplateError.
func render(template string, vals map[string]string) (string, error) {
	result := template
	for placeholder, value := range vals {
		if value == "" {
			result = removeEmptySegment(result, placeholder)
		} else {
			result = strings.ReplaceAll(result, placeholder, value)
		}
	}
	if tok := tokenRe.FindString(result); tok != "" {
		return "", &TemplateError{Token: tok, Template: template}
	}
	return cleanupPattern(result), nil
}

// removeEmptySegment drops " - {X}", "{X} - " and parenthesised segments
// containing an empty placeholder.
func removeEmptySegment(pattern, placeholder string) string {
	quoted := regexp.QuoteMeta(placeholder)
	for _, p := range []string{
		` - ` + quoted,
		quoted + ` - `,
		`\(` + quoted + `[^)]*\)`,
		`\([^(]*` + quoted + `\)`,
	} {
		pattern = regexp.MustCompile(p).ReplaceAllString(pattern, "")
	}
	return pattern
}

var (
	multiSpaceRe = regexp.MustCompile(`\s+`)
	emptyParenRe = regexp.MustCompile(`\(\s*\)`)
	multiSlashRe = regexp.MustCompile(`/+`)
)

// cleanupPattern collapses the debris left behind by dropped segments.
func cleanupPattern(pattern string) string {
	pattern = multiSpaceRe.ReplaceAllString(pattern, " ")
	pattern = emptyParenRe.ReplaceAllString(pattern, "")
	pattern = multiSlashRe.ReplaceAllString(pattern, "/")
	parts := strings.Split(pattern, "/")
	for i, part := range parts {
		parts[i] = strings.Trim(part, " -")
	}
	return strings.Trim(strings.Join(parts, "/"), " -/")
}

// sanitizeSegment makes one path segment safe for the filesystem and trims
// it to the configured length.
func sanitizeSegment(name string, maxLen int) string {
	for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*", "/", "\\"} {
		name = strings.ReplaceAll(name, char, "_")
	}
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ". ")
	if maxLen <= 0 {
		maxLen = 200
	}
	if len(name) > maxLen {
		name = strings.TrimRight(name[:maxLen], ". ")
	}
	return name
}

// sanitizePath sanitizes every segment of a rendered folder path.
func sanitizePath(path string, maxLen int) string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, part := range parts {
		if s := sanitizeSegment(part, maxLen); s != "" {
			out = append(out, s)
		}
	}
	return filepath.Join(out...)
}

// applyCase rewrites a rendered path per the case policy.
func applyCase(path, policy string) string {
	switch policy {
	case CaseLower:
		return strings.ToLower(path)
	case CaseUpper:
		return strings.ToUpper(path)
	case CaseTitle:
		parts := strings.Split(path, "/")
		for i, part := range parts {
			parts[i] = titleCase(part)
		}
		return strings.Join(parts, "/")
	default:
		return path
	}
}

// titleCase uppercases the first letter of each word without touching the
// rest, so acronyms and roman numerals survive.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// lastFirst flips "Frank Herbert" into "Herbert, Frank". Single-word names
// and names already in comma form pass through unchanged.
func lastFirst(name string) string {
	if strings.Contains(name, ",") {
		return name
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	last := parts[len(parts)-1]
	return last + ", " + strings.Join(parts[:len(parts)-1], " ")
}

// shortTitle keeps the part of a title before the first subtitle separator.
func shortTitle(title string) string {
	for _, sep := range []string{": ", " - "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return title
}

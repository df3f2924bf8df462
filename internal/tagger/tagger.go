// file: internal/tagger/tagger.go
// version: 1.0.0
// guid: 5e8c2a7b-3d1f-4b6e-9a4c-8f0b2d4e6a1c

package tagger

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	taglib "go.senan.xyz/taglib"

	"github.com/jdfalk/bookbot/internal/models"
)

// Custom tag keys not covered by taglib's well-known constants. TagLib
// accepts arbitrary keys; these match what common audiobook tools write.
const (
	keyNarrator    = "NARRATOR"
	keySeries      = "SERIES"
	keySeriesIndex = "SERIESINDEX"
	keyLanguage    = "LANGUAGE"
	keyISBN        = "ISBN"
	keyASIN        = "ASIN"
)

// Tagger reads and writes audio file tags through TagLib. It is the
// production implementation of the executor's tag I/O.
type Tagger struct{}

// ReadTags reads the file's tags into a TagSet. Absent tags stay zero.
func (Tagger) ReadTags(path string) (models.TagSet, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.TagSet{}, err
	}
	raw, err := taglib.ReadTags(abs)
	if err != nil {
		return models.TagSet{}, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}
	ts := models.TagSet{
		Title:       first(raw, taglib.Title),
		Album:       first(raw, taglib.Album),
		Artist:      first(raw, taglib.Artist),
		AlbumArtist: first(raw, taglib.AlbumArtist),
		Genre:       first(raw, taglib.Genre),
		Date:        first(raw, taglib.Date),
		Narrator:    first(raw, keyNarrator, "COMPOSER"),
		Series:      first(raw, keySeries, "MVNM"),
		SeriesIndex: first(raw, keySeriesIndex, "MVIN"),
		Language:    first(raw, keyLanguage, "TLAN"),
		ISBN:        first(raw, keyISBN, "ISBN13", "ISBN10"),
		ASIN:        first(raw, keyASIN),
	}
	ts.Track = leadingInt(first(raw, taglib.TrackNumber))
	ts.Disc = leadingInt(first(raw, taglib.DiscNumber))
	return ts, nil
}

// WriteTags replaces the file's tags with exactly the given set. Clearing
// first keeps writes idempotent and makes restoring a previously read set
// an exact inverse.
func (Tagger) WriteTags(path string, ts models.TagSet) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	tags := make(map[string][]string)
	put := func(key, value string) {
		if value != "" {
			tags[key] = []string{value}
		}
	}
	put(taglib.Title, ts.Title)
	put(taglib.Album, ts.Album)
	put(taglib.Artist, ts.Artist)
	put(taglib.AlbumArtist, ts.AlbumArtist)
	put(taglib.Genre, ts.Genre)
	put(taglib.Date, ts.Date)
	put(keyNarrator, ts.Narrator)
	put(keySeries, ts.Series)
	put(keySeriesIndex, ts.SeriesIndex)
	put(keyLanguage, strings.ToLower(ts.Language))
	put(keyISBN, ts.ISBN)
	put(keyASIN, ts.ASIN)
	if ts.Track > 0 {
		put(taglib.TrackNumber, strconv.Itoa(ts.Track))
	}
	if ts.Disc > 0 {
		put(taglib.DiscNumber, strconv.Itoa(ts.Disc))
	}
	if err := taglib.WriteTags(abs, tags, taglib.Clear); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

func first(raw map[string][]string, keys ...string) string {
	for _, k := range keys {
		if vals, ok := raw[k]; ok && len(vals) > 0 && vals[0] != "" {
			return vals[0]
		}
	}
	return ""
}

// leadingInt parses "5" and "5/27" style numbering tags.
func leadingInt(s string) int {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// file: internal/scanner/scanner.go
// version: 1.0.0
// guid: 7c2d9e4f-1a8b-4c6d-9e3f-5a7b8c9d0e1f

package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dhowden/tag"

	"github.com/jdfalk/bookbot/internal/models"
)

// SupportedExtensions are the audio file extensions the scanner picks up.
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".m4b":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".aac":  true,
	".wav":  true,
}

// Options configures a scan.
type Options struct {
	// Workers bounds the number of files read concurrently. <1 means 1.
	Workers int
	// MaxDepth bounds directory recursion below the root. 0 means unlimited.
	MaxDepth int
	// SkipChecksum disables content hashing (useful for fast previews).
	SkipChecksum bool
	// Progress, when set, is called once per scanned file.
	Progress func(path string)
}

// Track/disc number extraction patterns, tried in order against the filename
// stem when tags carry no usable number.
var trackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{1,3})`),
	regexp.MustCompile(`(?i)track\s*(\d+)`),
	regexp.MustCompile(`(?i)ch(?:apter)?\s*(\d+)`),
	regexp.MustCompile(`(?i)part\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*[-_.]\s*`),
}

var discPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^disc(?:\s*|[-_])?(\d+)$`),
	regexp.MustCompile(`(?i)^cd(?:\s*|[-_])?(\d+)$`),
	regexp.MustCompile(`(?i)^book\s*(\d+)$`),
	regexp.MustCompile(`(?i)^volume\s*(\d+)$`),
	regexp.MustCompile(`(?i)^vol\.?\s*(\d+)$`),
}

// Scan walks root and returns one Track per discovered audio file, sorted by
// path. Files whose tags cannot be read still produce a Track with a warning;
// only filesystem-level failures abort the scan.
func Scan(root string, opts Options) ([]models.Track, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	var paths []string
	rootDepth := strings.Count(filepath.Clean(root), string(os.PathSeparator))
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				depth := strings.Count(filepath.Clean(path), string(os.PathSeparator)) - rootDepth
				if depth > opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	tracks := make([]models.Track, len(paths))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)
	for i, p := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			tracks[idx] = readTrack(path, opts.SkipChecksum)
			if opts.Progress != nil {
				opts.Progress(path)
			}
		}(i, p)
	}
	wg.Wait()

	return tracks, nil
}

// readTrack builds a Track from one file. Tag failures degrade to
// filename-only inference with a warning.
func readTrack(path string, skipChecksum bool) models.Track {
	t := models.Track{
		Path:   path,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Disc:   1,
	}
	if info, err := os.Stat(path); err == nil {
		t.Size = info.Size()
	}

	tags, err := readTags(path)
	if err != nil {
		t.Warnings = append(t.Warnings, fmt.Sprintf("could not read tags: %v", err))
	} else {
		t.Tags = tags
	}

	t.Index = trackNumber(path, t.Tags)
	t.Disc = discNumber(path, t.Tags)

	if !skipChecksum {
		sum, err := ChecksumFile(path)
		if err != nil {
			t.Warnings = append(t.Warnings, fmt.Sprintf("could not hash file: %v", err))
		} else {
			t.Checksum = sum
		}
	}
	return t
}

// readTags extracts the embedded tag snapshot using the tag library.
func readTags(path string) (models.TagSet, error) {
	var ts models.TagSet

	f, err := os.Open(path)
	if err != nil {
		return ts, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return ts, err
	}

	ts.Title = m.Title()
	ts.Album = m.Album()
	ts.Artist = m.Artist()
	ts.AlbumArtist = m.AlbumArtist()
	ts.Genre = m.Genre()
	if y := m.Year(); y > 0 {
		ts.Date = strconv.Itoa(y)
	}
	if n, _ := m.Track(); n > 0 {
		ts.Track = n
	}
	if d, _ := m.Disc(); d > 0 {
		ts.Disc = d
	}

	// Extended fields live in format-specific raw frames; best-effort only.
	raw := m.Raw()
	for _, key := range []string{"TXXX:NARRATOR", "TXXX:Narrator", "NARRATOR", "©nrt"} {
		if s := rawString(raw, key); s != "" {
			ts.Narrator = s
			break
		}
	}
	for _, key := range []string{"TXXX:SERIES", "SERIES", "MVNM", "©mvn"} {
		if s := rawString(raw, key); s != "" {
			ts.Series = s
			break
		}
	}
	for _, key := range []string{"TXXX:SERIES-PART", "SERIESINDEX", "MVIN"} {
		if s := rawString(raw, key); s != "" {
			ts.SeriesIndex = s
			break
		}
	}
	if s := rawString(raw, "TLAN"); s != "" {
		ts.Language = s
	}
	for _, key := range []string{"TXXX:ISBN", "ISBN"} {
		if s := rawString(raw, key); s != "" {
			ts.ISBN = s
			break
		}
	}
	for _, key := range []string{"TXXX:ASIN", "ASIN", "CDEK"} {
		if s := rawString(raw, key); s != "" {
			ts.ASIN = s
			break
		}
	}
	return ts, nil
}

func rawString(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// trackNumber prefers the tag value and falls back to filename patterns.
// Returns 0 when nothing usable is found so the grouper can warn.
func trackNumber(path string, tags models.TagSet) int {
	if tags.Track > 0 {
		return tags.Track
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, pattern := range trackPatterns {
		if m := pattern.FindStringSubmatch(stem); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// discNumber checks tags, then the filename stem and up to three parent
// directory names for disc markers like "CD1" or "Disc 2".
func discNumber(path string, tags models.TagSet) int {
	if tags.Disc > 0 {
		return tags.Disc
	}

	targets := []string{strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	parent := filepath.Dir(path)
	for depth := 0; depth < 3 && parent != filepath.Dir(parent); depth++ {
		targets = append(targets, filepath.Base(parent))
		parent = filepath.Dir(parent)
	}

	for _, target := range targets {
		for _, pattern := range discPatterns {
			if m := pattern.FindStringSubmatch(strings.TrimSpace(target)); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	return 1
}

// ChecksumFile computes the SHA256 hash of a file. Large files (>100MB) are
// hashed by first chunk + last chunk + size so scanning a library of multi-GB
// m4b files stays fast; the quick hash is stable for move verification
// because moves preserve content.
func ChecksumFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}

	const threshold = 100 * 1024 * 1024
	const chunkSize = 10 * 1024 * 1024

	h := sha256.New()
	if info.Size() > threshold {
		first := make([]byte, chunkSize)
		n, err := file.Read(first)
		if err != nil && err != io.EOF {
			return "", err
		}
		h.Write(first[:n])

		if _, err := file.Seek(-chunkSize, io.SeekEnd); err == nil {
			last := make([]byte, chunkSize)
			n, err := file.Read(last)
			if err != nil && err != io.EOF {
				return "", err
			}
			h.Write(last[:n])
		}
		h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

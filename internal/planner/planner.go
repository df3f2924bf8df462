// file: internal/planner/planner.go
// version: 1.0.0
// guid: 9b4e2c7a-5f1d-4a8b-b3e6-0c2d4f6a8b1e

package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdfalk/bookbot/internal/models"
)

// OpKind identifies one kind of invertible filesystem mutation.
type OpKind string

const (
	OpMove       OpKind = "move"
	OpWriteTags  OpKind = "write_tags"
	OpWriteCover OpKind = "write_cover"
	OpTranscode  OpKind = "transcode"
	OpRemoveDir  OpKind = "remove_empty_dir"
)

// Operation is one planned mutation. The Prev* fields are the inverse
// payloads; they stay nil until the executor captures them at apply time.
type Operation struct {
	Kind OpKind `json:"kind"`
	Src  string `json:"src,omitempty"` // move/transcode source
	Dst  string `json:"dst"`           // target path for every kind

	Tags     *models.TagSet `json:"tags,omitempty"`
	CoverURL string         `json:"cover_url,omitempty"`
	Bitrate  string         `json:"bitrate,omitempty"`

	PrevTags  *models.TagSet `json:"prev_tags,omitempty"`
	PrevCover []byte         `json:"prev_cover,omitempty"`
	// Stash is where the executor parked a transcode source so the
	// operation stays invertible.
	Stash string `json:"stash,omitempty"`
}

func (op Operation) String() string {
	switch op.Kind {
	case OpMove:
		return fmt.Sprintf("move %s -> %s", op.Src, op.Dst)
	case OpTranscode:
		return fmt.Sprintf("transcode %s -> %s", op.Src, op.Dst)
	default:
		return fmt.Sprintf("%s %s", op.Kind, op.Dst)
	}
}

// Plan is the ordered, not-yet-applied set of operations for one work group.
type Plan struct {
	GroupDir string                  `json:"group_dir"`
	Record   models.ReconciledRecord `json:"record"`
	Ops      []Operation             `json:"ops"`
	Warnings []string                `json:"warnings,omitempty"`
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool { return len(p.Ops) == 0 }

// BuildPlan renders destination paths for every track of the group and
// assembles the ordered operation list. It never mutates the filesystem;
// the only disk access is a stat of each planned destination.
//
// Ordering invariant: all moves come first, then transcodes, then tag and
// cover writes at the final paths, and RemoveEmptyDir entries last. Empty
// directory removal is only planned for directories this plan itself
// empties.
func BuildPlan(group models.WorkGroup, rec models.ReconciledRecord, cfg Naming) (*Plan, error) {
	plan := &Plan{GroupDir: group.Dir, Record: rec}

	group.SortTracks()
	maxTrack := 0
	for _, t := range group.Tracks {
		if t.Index > maxTrack {
			maxTrack = t.Index
		}
	}

	folder, err := renderFolder(group, rec, cfg, maxTrack)
	if err != nil {
		return nil, err
	}

	dests := make([]string, len(group.Tracks))
	byDst := make(map[string][]string)
	srcSet := make(map[string]bool, len(group.Tracks))
	for i, t := range group.Tracks {
		name, err := render(cfg.FileTemplate, tokens(group, rec, t, maxTrack))
		if err != nil {
			return nil, err
		}
		name = sanitizeSegment(applyCase(name, cfg.Case), cfg.MaxNameLen) + "." + t.Format
		dst := filepath.Join(cfg.LibraryRoot, folder, name)
		dests[i] = dst
		byDst[dst] = append(byDst[dst], t.Path)
		srcSet[t.Path] = true
	}
	for dst, srcs := range byDst {
		if len(srcs) > 1 {
			sort.Strings(srcs)
			return nil, &CollisionError{Dst: dst, Sources: srcs}
		}
	}
	// Transcoding rewrites extensions, so destinations that are unique now
	// can still collapse onto one output file. Check the post-transcode
	// paths too.
	if cfg.TranscodeFormat != "" {
		byOut := make(map[string][]string)
		for i, t := range group.Tracks {
			out := dests[i]
			if t.Format != cfg.TranscodeFormat {
				out = strings.TrimSuffix(out, filepath.Ext(out)) + "." + cfg.TranscodeFormat
			}
			byOut[out] = append(byOut[out], t.Path)
		}
		for out, srcs := range byOut {
			if len(srcs) > 1 {
				sort.Strings(srcs)
				return nil, &CollisionError{Dst: out, Sources: srcs}
			}
		}
	}
	if !cfg.Force {
		for _, dst := range dests {
			if srcSet[dst] {
				continue
			}
			if _, err := os.Stat(dst); err == nil {
				return nil, &DestinationExistsError{Dst: dst}
			}
		}
	}

	// Moves first so every later operation sees the final path.
	finals := make([]string, len(group.Tracks))
	var moves []moveStep
	for i, t := range group.Tracks {
		finals[i] = dests[i]
		if t.Path != dests[i] {
			moves = append(moves, moveStep{src: t.Path, dst: dests[i]})
		}
	}
	ordered, err := orderMoves(moves)
	if err != nil {
		return nil, err
	}
	for _, m := range ordered {
		plan.Ops = append(plan.Ops, Operation{Kind: OpMove, Src: m.src, Dst: m.dst})
	}

	if cfg.TranscodeFormat != "" {
		for i, t := range group.Tracks {
			if t.Format == cfg.TranscodeFormat {
				continue
			}
			out := strings.TrimSuffix(finals[i], filepath.Ext(finals[i])) + "." + cfg.TranscodeFormat
			plan.Ops = append(plan.Ops, Operation{
				Kind:    OpTranscode,
				Src:     finals[i],
				Dst:     out,
				Bitrate: cfg.TranscodeBitrate,
			})
			finals[i] = out
		}
	}

	if cfg.WriteTags {
		for i, t := range group.Tracks {
			if tags := desiredTags(rec, t, group.DiscCount, cfg.Overwrite); tags != nil {
				plan.Ops = append(plan.Ops, Operation{Kind: OpWriteTags, Dst: finals[i], Tags: tags})
			}
		}
	}
	if cfg.EmbedCover && rec.CoverURL != "" {
		for i := range group.Tracks {
			plan.Ops = append(plan.Ops, Operation{Kind: OpWriteCover, Dst: finals[i], CoverURL: rec.CoverURL})
		}
	}

	for _, dir := range emptiedDirs(group.Dir, group.Tracks, dests) {
		plan.Ops = append(plan.Ops, Operation{Kind: OpRemoveDir, Dst: dir})
	}

	if rec.NeedsReview {
		plan.Warnings = append(plan.Warnings, "metadata flagged for review; plan built from best-effort record")
	}
	return plan, nil
}

func renderFolder(group models.WorkGroup, rec models.ReconciledRecord, cfg Naming, maxTrack int) (string, error) {
	// Folder tokens come from the first track; per-track tokens do not
	// belong in folder templates and render identically for track one.
	var t models.Track
	if len(group.Tracks) > 0 {
		t = group.Tracks[0]
	}
	folder, err := render(cfg.FolderTemplate, tokens(group, rec, t, maxTrack))
	if err != nil {
		return "", err
	}
	return sanitizePath(applyCase(folder, cfg.Case), cfg.MaxNameLen), nil
}

type moveStep struct {
	src, dst string
}

// orderMoves sequences renames so no move lands on a path another pending
// move still reads from. When a destination equals a pending source the
// vacating move runs first; rename cycles (swapped track numbers) are broken
// by parking one file at a temporary sibling until its destination clears.
func orderMoves(moves []moveStep) ([]moveStep, error) {
	pending := append([]moveStep(nil), moves...)
	srcs := make(map[string]bool, len(pending))
	for _, m := range pending {
		srcs[m.src] = true
	}

	ordered := make([]moveStep, 0, len(pending))
	for len(pending) > 0 {
		advanced := false
		for i, m := range pending {
			if srcs[m.dst] {
				continue
			}
			ordered = append(ordered, m)
			delete(srcs, m.src)
			pending = append(pending[:i], pending[i+1:]...)
			advanced = true
			break
		}
		if advanced {
			continue
		}
		// Every pending destination is still someone's source: a cycle.
		m := pending[0]
		tmp, err := parkingPath(m.src, srcs)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, moveStep{src: m.src, dst: tmp})
		delete(srcs, m.src)
		pending[0].src = tmp
	}
	return ordered, nil
}

// parkingPath picks an unused temporary sibling for a cycle-breaking move.
func parkingPath(src string, srcs map[string]bool) (string, error) {
	for i := 0; i < 10; i++ {
		tmp := fmt.Sprintf("%s.shuffle%d", src, i)
		if srcs[tmp] {
			continue
		}
		if _, err := os.Stat(tmp); os.IsNotExist(err) {
			return tmp, nil
		}
	}
	return "", fmt.Errorf("no free staging name next to %s", src)
}

// desiredTags builds the tag set to write for one track under the overwrite
// policy. A nil result means no tag write is planned for the track.
func desiredTags(rec models.ReconciledRecord, t models.Track, discCount int, policy string) *models.TagSet {
	if policy == "preserve" && !t.Tags.IsEmpty() {
		return nil
	}
	author := rec.PrimaryAuthor()
	narrator := ""
	if len(rec.Narrators) > 0 {
		narrator = strings.Join(rec.Narrators, "; ")
	}
	year := ""
	if rec.Year > 0 {
		year = fmt.Sprintf("%d", rec.Year)
	}
	trackTitle := t.Tags.Title
	if trackTitle == "" {
		trackTitle = fmt.Sprintf("%s, Part %02d", rec.Title, t.Index)
	}
	isbn := rec.ISBN13
	if isbn == "" {
		isbn = rec.ISBN10
	}
	want := models.TagSet{
		Title:       trackTitle,
		Album:       rec.Title,
		Artist:      author,
		AlbumArtist: author,
		Narrator:    narrator,
		Series:      rec.SeriesName,
		SeriesIndex: rec.SeriesIndex,
		Genre:       "Audiobook",
		Date:        year,
		Language:    rec.Language,
		Track:       t.Index,
		Disc:        t.Disc,
		ISBN:        isbn,
		ASIN:        rec.ASIN,
	}
	if discCount <= 1 {
		want.Disc = 0
	}
	if policy == "fill_missing" {
		want = fillMissing(t.Tags, want)
	}
	if want == t.Tags {
		return nil
	}
	return &want
}

// fillMissing keeps every tag the file already carries and takes the wanted
// value only for fields the file leaves empty.
func fillMissing(have, want models.TagSet) models.TagSet {
	out := have
	if out.Title == "" {
		out.Title = want.Title
	}
	if out.Album == "" {
		out.Album = want.Album
	}
	if out.Artist == "" {
		out.Artist = want.Artist
	}
	if out.AlbumArtist == "" {
		out.AlbumArtist = want.AlbumArtist
	}
	if out.Narrator == "" {
		out.Narrator = want.Narrator
	}
	if out.Series == "" {
		out.Series = want.Series
	}
	if out.SeriesIndex == "" {
		out.SeriesIndex = want.SeriesIndex
	}
	if out.Genre == "" {
		out.Genre = want.Genre
	}
	if out.Date == "" {
		out.Date = want.Date
	}
	if out.Language == "" {
		out.Language = want.Language
	}
	if out.Track == 0 {
		out.Track = want.Track
	}
	if out.Disc == 0 {
		out.Disc = want.Disc
	}
	if out.ISBN == "" {
		out.ISBN = want.ISBN
	}
	if out.ASIN == "" {
		out.ASIN = want.ASIN
	}
	return out
}

// emptiedDirs returns the source directories this plan drains completely,
// deepest first. A directory qualifies only when every entry in it is either
// a file being moved out or a subdirectory that itself qualifies, and no
// destination lands inside it.
func emptiedDirs(groupDir string, tracks []models.Track, dests []string) []string {
	moved := make(map[string]bool, len(tracks))
	dirs := make(map[string]bool)
	for i, t := range tracks {
		if t.Path == dests[i] {
			continue
		}
		moved[t.Path] = true
		// Every ancestor up to the group directory is a removal candidate;
		// a parent counts as empty once its drained children are planned out.
		for d := filepath.Dir(t.Path); ; d = filepath.Dir(d) {
			dirs[d] = true
			if d == groupDir || d == filepath.Dir(d) || !strings.HasPrefix(d, groupDir) {
				break
			}
		}
	}
	if len(dirs) == 0 {
		return nil
	}
	dstDirs := make(map[string]bool, len(dests))
	for _, d := range dests {
		dstDirs[filepath.Dir(d)] = true
	}

	candidates := make([]string, 0, len(dirs))
	for d := range dirs {
		candidates = append(candidates, d)
	}
	// Deepest first so a parent can count an already-drained child as gone.
	sort.Slice(candidates, func(i, j int) bool {
		di := strings.Count(candidates[i], string(filepath.Separator))
		dj := strings.Count(candidates[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return candidates[i] < candidates[j]
	})

	drained := make(map[string]bool)
	var out []string
	for _, dir := range candidates {
		if dstDirs[dir] {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		empty := true
		for _, e := range entries {
			p := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if !drained[p] {
					empty = false
					break
				}
				continue
			}
			if !moved[p] {
				empty = false
				break
			}
		}
		if empty {
			drained[dir] = true
			out = append(out, dir)
		}
	}
	return out
}

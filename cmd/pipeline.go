// file: cmd/pipeline.go
// version: 1.0.0
// guid: 0e4a6c8b-2d5f-4b7a-9c1e-3f5b7d9a1c3e

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	progressbar "github.com/schollz/progressbar/v3"

	"github.com/jdfalk/bookbot/internal/config"
	"github.com/jdfalk/bookbot/internal/executor"
	"github.com/jdfalk/bookbot/internal/grouper"
	"github.com/jdfalk/bookbot/internal/matcher"
	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/planner"
	"github.com/jdfalk/bookbot/internal/provider"
	"github.com/jdfalk/bookbot/internal/scanner"
	"github.com/jdfalk/bookbot/internal/tagger"
	"github.com/jdfalk/bookbot/internal/transcode"
	"github.com/jdfalk/bookbot/internal/txstore"
)

func scanAndGroup(root string) ([]models.WorkGroup, error) {
	fmt.Printf("Scanning directory: %s\n", root)
	bar := progressbar.Default(-1, "scanning")
	tracks, err := scanner.Scan(root, scanner.Options{
		Workers:      config.AppConfig.Workers,
		SkipChecksum: config.AppConfig.SkipChecksum,
		Progress:     func(string) { _ = bar.Add(1) },
	})
	_ = bar.Finish()
	if err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}
	groups := grouper.Group(tracks)
	fmt.Printf("Found %d tracks in %d work groups\n", len(tracks), len(groups))
	return groups, nil
}

func printGroups(groups []models.WorkGroup) {
	for _, g := range groups {
		title := g.TitleGuess
		if title == "" {
			title = filepath.Base(g.Dir)
		}
		fmt.Printf("\n%s\n", g.Dir)
		fmt.Printf("  %s", title)
		if g.AuthorGuess != "" {
			fmt.Printf(" by %s", g.AuthorGuess)
		}
		fmt.Printf(" (%d tracks", len(g.Tracks))
		if g.DiscCount > 1 {
			fmt.Printf(", %d discs", g.DiscCount)
		}
		fmt.Println(")")
		for _, w := range g.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
}

// newRegistry builds the provider registry for one work group. The local
// adapter synthesizes a candidate from the group's own tags, so it is
// registered per group.
func newRegistry(group models.WorkGroup) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if err := reg.Register(provider.NewOpenLibrary(), config.AppConfig.ProviderSettings("openlibrary")); err != nil {
		return nil, err
	}
	if err := reg.Register(provider.NewLocal(group), config.AppConfig.ProviderSettings("local")); err != nil {
		return nil, err
	}
	return reg, nil
}

func reconcileGroup(ctx context.Context, group models.WorkGroup) (models.ReconciledRecord, error) {
	reg, err := newRegistry(group)
	if err != nil {
		return models.ReconciledRecord{}, err
	}
	return matcher.Reconcile(ctx, group, reg, config.AppConfig.MatcherConfig())
}

func runMatch(ctx context.Context, groups []models.WorkGroup) error {
	for _, g := range groups {
		rec, err := reconcileGroup(ctx, g)
		if err != nil && !errors.Is(err, matcher.ErrNoCandidates) {
			return err
		}
		fmt.Printf("\n%s\n", g.Dir)
		if errors.Is(err, matcher.ErrNoCandidates) {
			fmt.Println("  no provider returned candidates; needs review")
			continue
		}
		fmt.Printf("  %s\n", rec.String())
		for _, c := range rec.Conflicts {
			fmt.Printf("  conflict on %s: %v\n", c.Field, c.Values)
		}
		for _, p := range rec.Unavailable {
			fmt.Printf("  provider unavailable: %s\n", p)
		}
	}
	return nil
}

func runOrganize(ctx context.Context, groups []models.WorkGroup, apply, force bool) error {
	naming, err := config.AppConfig.Naming(force)
	if err != nil {
		return err
	}

	var store *txstore.Store
	var exec *executor.Executor
	if apply {
		store, err = txstore.Open(config.AppConfig.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		exec = executor.New(store, tagger.Tagger{}, executor.Options{
			Transcoder: &transcode.FFmpeg{},
			Progress:   barProgress(),
			StashDir:   filepath.Join(config.AppConfig.StorePath, "stash"),
		})
	}

	applied, skipped := 0, 0
	for _, g := range groups {
		rec, err := reconcileGroup(ctx, g)
		if err != nil {
			if errors.Is(err, matcher.ErrNoCandidates) {
				fmt.Printf("skip %s: no candidates\n", g.Dir)
				skipped++
				continue
			}
			return err
		}
		if rec.NeedsReview && !force {
			fmt.Printf("skip %s: needs review (%s)\n", g.Dir, rec.String())
			skipped++
			continue
		}

		plan, err := planner.BuildPlan(g, rec, naming)
		if err != nil {
			fmt.Printf("skip %s: %v\n", g.Dir, err)
			skipped++
			continue
		}
		if plan.Empty() {
			continue
		}

		fmt.Printf("\n%s -> %s\n", g.Dir, rec.String())
		for _, op := range plan.Ops {
			fmt.Printf("  %s\n", op)
		}
		if !apply {
			continue
		}

		tx, err := exec.Apply(ctx, plan)
		if err != nil {
			var swe *executor.StoreWriteError
			switch {
			case errors.As(err, &swe):
				fmt.Printf("warning: %v\n", swe)
			case tx != nil:
				fmt.Printf("failed: %v (rolled back, transaction %s)\n", err, tx.ID)
				skipped++
				continue
			default:
				fmt.Printf("failed: %v\n", err)
				skipped++
				continue
			}
		}
		fmt.Printf("applied as transaction %s\n", tx.ID)
		applied++
	}

	if apply {
		fmt.Printf("\nDone: %d groups applied, %d skipped\n", applied, skipped)
	} else {
		fmt.Printf("\nDry run: re-run with --apply to execute\n")
	}
	return nil
}

// barProgress adapts the executor's progress callback to a progress bar,
// starting a fresh bar whenever the label changes.
func barProgress() executor.ProgressFunc {
	var bar *progressbar.ProgressBar
	var current string
	return func(label string, done, total int64) {
		if bar == nil || label != current {
			bar = progressbar.Default(total, label)
			current = label
		}
		_ = bar.Set64(done)
	}
}

// file: cmd/watch.go
// version: 1.0.0
// guid: 5a9c1e3d-7b0f-4c6a-8e2d-4f6a8c0e2b4d

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdfalk/bookbot/internal/config"
	"github.com/jdfalk/bookbot/internal/grouper"
	"github.com/jdfalk/bookbot/internal/models"
	"github.com/jdfalk/bookbot/internal/scanner"
	"github.com/jdfalk/bookbot/internal/watcher"
)

// watchCmd keeps organizing as files arrive.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the directory and organize new arrivals automatically",
	Long: `Watch monitors the root directory for audio file changes. After events
settle, only the changed directories are rescanned and organized.
Review-flagged groups are reported but left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.RootDir == "" {
			return fmt.Errorf("root directory not specified")
		}
		apply, _ := cmd.Flags().GetBool("apply")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx := cmd.Context()
		w := watcher.New(func(dirs []string) {
			groups := groupChangedDirs(dirs)
			if len(groups) == 0 {
				return
			}
			if err := runOrganize(ctx, groups, apply, false); err != nil {
				fmt.Fprintf(os.Stderr, "organize error: %v\n", err)
			}
		}, debounce)

		if err := w.Start(config.AppConfig.RootDir); err != nil {
			return err
		}
		defer w.Stop()
		fmt.Printf("Watching %s (debounce %s)\n", config.AppConfig.RootDir, debounce)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		fmt.Println("Stopping watcher")
		return nil
	},
}

// groupChangedDirs rescans just the directories the watcher reported and
// regroups their tracks.
func groupChangedDirs(dirs []string) []models.WorkGroup {
	var tracks []models.Track
	for _, dir := range dirs {
		scanned, err := scanner.Scan(dir, scanner.Options{
			Workers:      config.AppConfig.Workers,
			MaxDepth:     1,
			SkipChecksum: config.AppConfig.SkipChecksum,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan error for %s: %v\n", dir, err)
			continue
		}
		tracks = append(tracks, scanned...)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Path < tracks[j].Path })
	return grouper.Group(tracks)
}

func init() {
	watchCmd.Flags().Bool("apply", false, "apply plans instead of printing them")
	watchCmd.Flags().Duration("debounce", 5*time.Second, "settle period after the last event")

	rootCmd.AddCommand(watchCmd)
}

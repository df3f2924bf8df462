// file: cmd/root.go
// version: 1.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jdfalk/bookbot/internal/config"
)

var cfgFile string
var rootDir string
var libraryRoot string
var storePath string
var profile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bookbot",
	Short: "Organize audiobook libraries with reversible renames and tagging",
	Long: `Bookbot scans a directory of audiobook files, groups tracks into works,
reconciles metadata across providers, and renames and retags files
according to a naming profile.

Every applied change is recorded in a transaction store and can be
undone with "bookbot undo".`,
}

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a directory and show the detected work groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.RootDir == "" {
			return fmt.Errorf("root directory not specified")
		}
		groups, err := scanAndGroup(config.AppConfig.RootDir)
		if err != nil {
			return err
		}
		printGroups(groups)
		return nil
	},
}

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Reconcile metadata for each work group without touching files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.RootDir == "" {
			return fmt.Errorf("root directory not specified")
		}
		groups, err := scanAndGroup(config.AppConfig.RootDir)
		if err != nil {
			return err
		}
		return runMatch(cmd.Context(), groups)
	},
}

// organizeCmd represents the organize command
var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Plan and apply renames and tag writes",
	Long: `Organize runs the full pipeline: scan, group, reconcile, plan, apply.

Without --apply it is a dry run that prints every planned operation.
Groups whose metadata needs review are skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.AppConfig.RootDir == "" {
			return fmt.Errorf("root directory not specified")
		}
		apply, _ := cmd.Flags().GetBool("apply")
		force, _ := cmd.Flags().GetBool("force")
		groups, err := scanAndGroup(config.AppConfig.RootDir)
		if err != nil {
			return err
		}
		return runOrganize(cmd.Context(), groups, apply, force)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bookbot.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "dir", "", "directory containing audiobooks to organize")
	rootCmd.PersistentFlags().StringVar(&libraryRoot, "library", "", "destination library root (default: same as --dir)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "bookbot.store", "transaction store directory")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "default", "naming profile: default, series, plex, audible")

	viper.BindPFlag("root_dir", rootCmd.PersistentFlags().Lookup("dir"))
	viper.BindPFlag("library_root", rootCmd.PersistentFlags().Lookup("library"))
	viper.BindPFlag("store_path", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))

	organizeCmd.Flags().Bool("apply", false, "apply the plan instead of printing it")
	organizeCmd.Flags().Bool("force", false, "organize review-flagged groups and overwrite existing destinations")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(organizeCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bookbot")
	}

	viper.SetEnvPrefix("BOOKBOT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()
}

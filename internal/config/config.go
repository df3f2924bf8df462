// file: internal/config/config.go
// version: 1.0.0
// guid: 9f3b5d7e-1a4c-4e6b-8d0f-3a5c7e9b1d3f

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jdfalk/bookbot/internal/matcher"
	"github.com/jdfalk/bookbot/internal/planner"
	"github.com/jdfalk/bookbot/internal/provider"
)

// ProviderConfig is the per-provider section of the config file.
type ProviderConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Trust          float64 `mapstructure:"trust"`
	Priority       int     `mapstructure:"priority"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Config holds application configuration
type Config struct {
	RootDir     string // directory scanned for audiobooks
	LibraryRoot string // destination library; defaults to RootDir
	StorePath   string // transaction store directory

	SupportedExtensions []string
	Workers             int
	SkipChecksum        bool

	Profile        string // naming profile: default, series, plex, audible
	FolderTemplate string // overrides the profile's folder template
	FileTemplate   string // overrides the profile's file template
	CasePolicy     string
	MaxNameLen     int

	WriteTags  bool
	EmbedCover bool
	Overwrite  string // overwrite | fill_missing | preserve

	TranscodeFormat  string
	TranscodeBitrate string

	ReviewThreshold float64

	Providers map[string]ProviderConfig
}

var AppConfig Config

// InitConfig initializes the application configuration
func InitConfig() {
	viper.SetDefault("library_root", "")
	viper.SetDefault("store_path", "bookbot.store")
	viper.SetDefault("workers", 4)
	viper.SetDefault("profile", "default")
	viper.SetDefault("case_policy", planner.CaseAsIs)
	viper.SetDefault("write_tags", true)
	viper.SetDefault("embed_cover", false)
	viper.SetDefault("overwrite", "fill_missing")
	viper.SetDefault("review_threshold", matcher.DefaultConfig().ReviewThreshold)
	viper.SetDefault("providers.openlibrary.enabled", true)
	viper.SetDefault("providers.openlibrary.trust", 0.8)
	viper.SetDefault("providers.openlibrary.priority", 1)
	viper.SetDefault("providers.local.enabled", true)
	viper.SetDefault("providers.local.trust", 0.4)
	viper.SetDefault("providers.local.priority", 9)

	AppConfig = Config{
		RootDir:     viper.GetString("root_dir"),
		LibraryRoot: viper.GetString("library_root"),
		StorePath:   viper.GetString("store_path"),
		SupportedExtensions: []string{
			".m4b", ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".flac", ".wma",
		},
		Workers:          viper.GetInt("workers"),
		SkipChecksum:     viper.GetBool("skip_checksum"),
		Profile:          viper.GetString("profile"),
		FolderTemplate:   viper.GetString("folder_template"),
		FileTemplate:     viper.GetString("file_template"),
		CasePolicy:       viper.GetString("case_policy"),
		MaxNameLen:       viper.GetInt("max_name_len"),
		WriteTags:        viper.GetBool("write_tags"),
		EmbedCover:       viper.GetBool("embed_cover"),
		Overwrite:        viper.GetString("overwrite"),
		TranscodeFormat:  viper.GetString("transcode.format"),
		TranscodeBitrate: viper.GetString("transcode.bitrate"),
		ReviewThreshold:  viper.GetFloat64("review_threshold"),
	}

	if AppConfig.LibraryRoot == "" {
		AppConfig.LibraryRoot = AppConfig.RootDir
	}

	AppConfig.Providers = make(map[string]ProviderConfig)
	_ = viper.UnmarshalKey("providers", &AppConfig.Providers)
}

// Naming resolves the active naming profile plus overrides into the planner
// configuration. force is per-invocation, so it comes from the caller.
func (c *Config) Naming(force bool) (planner.Naming, error) {
	profile, ok := planner.Profiles[c.Profile]
	if !ok {
		return planner.Naming{}, fmt.Errorf("unknown naming profile %q", c.Profile)
	}
	naming := profile
	naming.LibraryRoot = c.LibraryRoot
	if c.FolderTemplate != "" {
		naming.FolderTemplate = c.FolderTemplate
	}
	if c.FileTemplate != "" {
		naming.FileTemplate = c.FileTemplate
	}
	naming.Case = c.CasePolicy
	naming.MaxNameLen = c.MaxNameLen
	naming.Force = force
	naming.WriteTags = c.WriteTags
	naming.EmbedCover = c.EmbedCover
	naming.Overwrite = c.Overwrite
	naming.TranscodeFormat = c.TranscodeFormat
	naming.TranscodeBitrate = c.TranscodeBitrate
	return naming, nil
}

// ProviderSettings converts one provider section into registry settings.
func (c *Config) ProviderSettings(name string) provider.Settings {
	pc, ok := c.Providers[name]
	if !ok {
		return provider.Settings{Enabled: true}
	}
	return provider.Settings{
		Enabled:  pc.Enabled,
		Trust:    pc.Trust,
		Priority: pc.Priority,
		Timeout:  time.Duration(pc.TimeoutSeconds) * time.Second,
	}
}

// MatcherConfig builds the reconciliation config with the user's review
// threshold applied.
func (c *Config) MatcherConfig() matcher.Config {
	cfg := matcher.DefaultConfig()
	if c.ReviewThreshold > 0 {
		cfg.ReviewThreshold = c.ReviewThreshold
	}
	return cfg
}

// Package config loads application configuration from defaults, TOML files,
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/firewatchhq/firewatch/internal/fwerr"
	"github.com/firewatchhq/firewatch/internal/paths"
)

// ProjectConfigName is the per-project config file discovered by walking up
// from the working directory.
const ProjectConfigName = ".firewatch.toml"

// Config holds the application configuration. Precedence, lowest to highest:
// built-in defaults, the user config file, the project config file, then
// FIREWATCH_* environment variables.
type Config struct {
	Repos       []string       `mapstructure:"repos"`
	GitHubToken string         `mapstructure:"github_token"`
	User        UserConfig     `mapstructure:"user"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Filters     FilterConfig   `mapstructure:"filters"`
	Output      OutputConfig   `mapstructure:"output"`
	Feedback    FeedbackConfig `mapstructure:"feedback"`
}

// UserConfig identifies the local user for perspective-dependent commands.
type UserConfig struct {
	GitHubUsername string `mapstructure:"github_username"`
}

// SyncConfig controls automatic cache refresh.
type SyncConfig struct {
	AutoSync       bool          `mapstructure:"auto_sync"`
	StaleThreshold time.Duration `mapstructure:"stale_threshold"`
}

// FilterConfig holds default query-time noise filters.
type FilterConfig struct {
	ExcludeBots    bool     `mapstructure:"exclude_bots"`
	ExcludeAuthors []string `mapstructure:"exclude_authors"`
	BotPatterns    []string `mapstructure:"bot_patterns"`
}

// OutputConfig controls the default rendering of query results.
type OutputConfig struct {
	DefaultFormat string `mapstructure:"default_format"`
}

// FeedbackConfig controls feedback bridge behavior.
type FeedbackConfig struct {
	CommitImpliesRead bool `mapstructure:"commit_implies_read"`
}

var repoNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("repos", []string{})
	v.SetDefault("github_token", "")
	v.SetDefault("user.github_username", "")
	v.SetDefault("sync.auto_sync", true)
	v.SetDefault("sync.stale_threshold", "5m")
	v.SetDefault("filters.exclude_bots", false)
	v.SetDefault("filters.exclude_authors", []string{})
	v.SetDefault("filters.bot_patterns", []string{})
	v.SetDefault("output.default_format", "jsonl")
	v.SetDefault("feedback.commit_implies_read", false)
}

// Load reads configuration using the default discovery chain: the user
// config file under the XDG config dir, then a project .firewatch.toml
// found by walking up from the working directory, then environment.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from an explicit file, skipping the
// discovery chain. An empty path behaves like Load.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FIREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", fwerr.ErrConfig, configPath, err)
		}
	} else {
		if user := paths.UserConfigFile(); fileExists(user) {
			v.SetConfigFile(user)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("%w: reading %s: %w", fwerr.ErrConfig, user, err)
			}
		}
		if project := findProjectConfig(); project != "" {
			v.SetConfigFile(project)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("%w: reading %s: %w", fwerr.ErrConfig, project, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", fwerr.ErrConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Output.DefaultFormat {
	case "jsonl", "json", "human":
	default:
		return fmt.Errorf("%w: output.default_format must be jsonl, json, or human, got %q",
			fwerr.ErrConfig, c.Output.DefaultFormat)
	}
	if c.Sync.StaleThreshold <= 0 {
		return fmt.Errorf("%w: sync.stale_threshold must be positive, got %s",
			fwerr.ErrConfig, c.Sync.StaleThreshold)
	}
	for _, repo := range c.Repos {
		if !repoNameRe.MatchString(repo) {
			return fmt.Errorf("%w: repos entries must be owner/name, got %q", fwerr.ErrConfig, repo)
		}
	}
	return nil
}

// BotPatterns returns the configured bot author patterns, or nil when the
// built-in defaults should apply.
func (c *Config) BotPatterns() []string {
	if len(c.Filters.BotPatterns) == 0 {
		return nil
	}
	return c.Filters.BotPatterns
}

// findProjectConfig walks up from the working directory looking for
// .firewatch.toml, stopping at the first directory containing .git or at
// the filesystem root.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectConfigName)
		if fileExists(candidate) {
			return candidate
		}
		if dirExists(filepath.Join(dir, ".git")) {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

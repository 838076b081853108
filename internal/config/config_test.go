package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatchhq/firewatch/internal/fwerr"
)

// allConfigKeys lists every FIREWATCH_ env var that Load() reads.
var allConfigKeys = []string{
	"FIREWATCH_REPOS",
	"FIREWATCH_GITHUB_TOKEN",
	"FIREWATCH_USER_GITHUB_USERNAME",
	"FIREWATCH_SYNC_AUTO_SYNC",
	"FIREWATCH_SYNC_STALE_THRESHOLD",
	"FIREWATCH_FILTERS_EXCLUDE_BOTS",
	"FIREWATCH_FILTERS_EXCLUDE_AUTHORS",
	"FIREWATCH_FILTERS_BOT_PATTERNS",
	"FIREWATCH_OUTPUT_DEFAULT_FORMAT",
	"FIREWATCH_FEEDBACK_COMMIT_IMPLIES_READ",
}

// isolateConfigEnv saves and unsets all FIREWATCH_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// isolateDirs points the XDG dirs and working directory at empty temp
// locations so discovery finds nothing unless the test plants a file.
func isolateDirs(t *testing.T) (configHome, workDir string) {
	t.Helper()
	configHome = t.TempDir()
	workDir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	require.NoError(t, os.Mkdir(filepath.Join(workDir, ".git"), 0o755))
	t.Chdir(workDir)
	return configHome, workDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	isolateDirs(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Repos)
	assert.Empty(t, cfg.GitHubToken)
	assert.True(t, cfg.Sync.AutoSync)
	assert.Equal(t, 5*time.Minute, cfg.Sync.StaleThreshold)
	assert.False(t, cfg.Filters.ExcludeBots)
	assert.Equal(t, "jsonl", cfg.Output.DefaultFormat)
	assert.False(t, cfg.Feedback.CommitImpliesRead)
}

func TestLoadWithPath_FullFile(t *testing.T) {
	isolateConfigEnv(t)
	isolateDirs(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
repos = ["acme/api", "acme/web"]
github_token = "ghp_filetoken"

[user]
github_username = "alice"

[sync]
auto_sync = false
stale_threshold = "30m"

[filters]
exclude_bots = true
exclude_authors = ["bob"]
bot_patterns = ["^custom-bot"]

[output]
default_format = "human"

[feedback]
commit_implies_read = true
`)

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme/api", "acme/web"}, cfg.Repos)
	assert.Equal(t, "ghp_filetoken", cfg.GitHubToken)
	assert.Equal(t, "alice", cfg.User.GitHubUsername)
	assert.False(t, cfg.Sync.AutoSync)
	assert.Equal(t, 30*time.Minute, cfg.Sync.StaleThreshold)
	assert.True(t, cfg.Filters.ExcludeBots)
	assert.Equal(t, []string{"bob"}, cfg.Filters.ExcludeAuthors)
	assert.Equal(t, []string{"^custom-bot"}, cfg.Filters.BotPatterns)
	assert.Equal(t, "human", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Feedback.CommitImpliesRead)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	isolateConfigEnv(t)
	configHome, workDir := isolateDirs(t)

	writeFile(t, filepath.Join(configHome, "firewatch", "config.toml"), `
repos = ["acme/api"]

[output]
default_format = "json"
`)
	writeFile(t, filepath.Join(workDir, ProjectConfigName), `
[output]
default_format = "human"
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "human", cfg.Output.DefaultFormat, "project file wins")
	assert.Equal(t, []string{"acme/api"}, cfg.Repos, "user file keys survive the merge")
}

func TestLoad_ProjectConfigWalksUp(t *testing.T) {
	isolateConfigEnv(t)
	_, workDir := isolateDirs(t)

	writeFile(t, filepath.Join(workDir, ProjectConfigName), `
repos = ["acme/deep"]
`)
	nested := filepath.Join(workDir, "cmd", "tool")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/deep"}, cfg.Repos)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolateConfigEnv(t)
	configHome, _ := isolateDirs(t)

	writeFile(t, filepath.Join(configHome, "firewatch", "config.toml"), `
github_token = "ghp_filetoken"

[sync]
stale_threshold = "30m"
`)
	t.Setenv("FIREWATCH_GITHUB_TOKEN", "ghp_envtoken")
	t.Setenv("FIREWATCH_SYNC_STALE_THRESHOLD", "2h")
	t.Setenv("FIREWATCH_OUTPUT_DEFAULT_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ghp_envtoken", cfg.GitHubToken)
	assert.Equal(t, 2*time.Hour, cfg.Sync.StaleThreshold)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad output format", "[output]\ndefault_format = \"xml\"\n"},
		{"zero stale threshold", "[sync]\nstale_threshold = \"0s\"\n"},
		{"malformed repo", "repos = [\"not-a-repo\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			isolateDirs(t)

			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.toml)

			_, err := LoadWithPath(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, fwerr.ErrConfig)
		})
	}
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	isolateConfigEnv(t)
	isolateDirs(t)

	_, err := LoadWithPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fwerr.ErrConfig)
}

func TestConfig_BotPatterns(t *testing.T) {
	cfg := &Config{}
	assert.Nil(t, cfg.BotPatterns(), "empty config falls back to built-in defaults")

	cfg.Filters.BotPatterns = []string{"^my-bot"}
	assert.Equal(t, []string{"^my-bot"}, cfg.BotPatterns())
}

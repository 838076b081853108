package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheDir_XDGOverride(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	assert.Equal(t, filepath.Join("/tmp/xdg-cache", "firewatch"), CacheDir())
}

func TestCacheDir_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/home/firekeeper")
	assert.Equal(t, "/home/firekeeper/.cache/firewatch", CacheDir())
}

func TestConfigDir_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/firekeeper")
	assert.Equal(t, "/home/firekeeper/.config/firewatch", ConfigDir())
}

func TestDataDir_XDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	assert.Equal(t, filepath.Join("/tmp/xdg-data", "firewatch"), DataDir())
}

func TestDerivedPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/c")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/k")

	assert.Equal(t, "/tmp/c/firewatch/firewatch.db", DatabaseFile())
	assert.Equal(t, "/tmp/c/firewatch/repos", LegacyRepoDir())
	assert.Equal(t, "/tmp/c/firewatch/meta.jsonl", LegacyMetaFile())
	assert.Equal(t, "/tmp/k/firewatch/config.toml", UserConfigFile())
	assert.Equal(t, "/tmp/c/firewatch/repos/octocat-hello-world.jsonl", LegacyRepoFile("octocat", "hello-world"))
}

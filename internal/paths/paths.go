// Package paths resolves the XDG-style directories firewatch persists into.
// Resolution is pure string work off the environment; directories are only
// created by the callers that write into them.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "firewatch"

// CacheDir returns the firewatch cache directory, honoring XDG_CACHE_HOME
// and falling back to ~/.cache.
func CacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".cache", appName)
}

// ConfigDir returns the firewatch config directory, honoring XDG_CONFIG_HOME
// and falling back to ~/.config.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

// DataDir returns the firewatch data directory, honoring XDG_DATA_HOME and
// falling back to ~/.local/share.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(homeDir(), ".local", "share", appName)
}

// DatabaseFile returns the path of the SQLite store.
func DatabaseFile() string {
	return filepath.Join(CacheDir(), "firewatch.db")
}

// LegacyRepoDir returns the directory the pre-SQLite cache wrote per-repo
// JSONL files into. Read-only fallback; nothing writes here anymore.
func LegacyRepoDir() string {
	return filepath.Join(CacheDir(), "repos")
}

// LegacyMetaFile returns the legacy cursor file path.
func LegacyMetaFile() string {
	return filepath.Join(CacheDir(), "meta.jsonl")
}

// UserConfigFile returns the user-level TOML config path.
func UserConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LegacyRepoFile returns the legacy JSONL path for one repo, with the
// owner/name separator flattened to a dash.
func LegacyRepoFile(owner, name string) string {
	return filepath.Join(LegacyRepoDir(), owner+"-"+name+".jsonl")
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}

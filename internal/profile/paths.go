package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.storechat, or $STORECHAT_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("STORECHAT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storechat")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// LogPath returns the log file for a component ("chatd", "chattui").
func LogPath(component string) string {
	return filepath.Join(LogDir(), component+".log")
}

// DataDir returns the chatd data directory, honoring an explicit override.
func DataDir(override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(BaseDir(), "data")
}

// DBPath returns the chatd SQLite database path inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "chatd.db")
}

// EnsureDirs creates the base and log directories with owner-only permissions.
func EnsureDirs() error {
	for _, d := range []string{BaseDir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}

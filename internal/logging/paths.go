package logging

import (
	"os"
	"path/filepath"
)

// DefaultStateDir returns ~/.reconsolidate, creating nothing.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reconsolidate"
	}
	return filepath.Join(home, ".reconsolidate")
}

// DefaultLogDir returns ~/.reconsolidate/logs.
func DefaultLogDir() string {
	return filepath.Join(DefaultStateDir(), "logs")
}

// DefaultLogPath returns ~/.reconsolidate/logs/reconsolidate.log.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "reconsolidate.log")
}

// DefaultAccessStorePath returns ~/.reconsolidate/access.db.
func DefaultAccessStorePath() string {
	return filepath.Join(DefaultStateDir(), "access.db")
}

// DefaultMetricsStorePath returns ~/.reconsolidate/metrics.db.
func DefaultMetricsStorePath() string {
	return filepath.Join(DefaultStateDir(), "metrics.db")
}

// EnsureLogDir creates the parent directory of path if it doesn't exist.
func EnsureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

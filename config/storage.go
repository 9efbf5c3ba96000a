package config

import "fmt"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendJSONL  = "jsonl"
	BackendFile   = "file"
)

// SeriesStorageConfig selects where farm samples are stored.
type SeriesStorageConfig struct {
	// Backend is memory, sqlite or jsonl.
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl backend when positive.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// CheckpointStorageConfig selects where snapshots are stored.
type CheckpointStorageConfig struct {
	// Backend is memory, sqlite or file. Path is a directory for file.
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// Keep prunes older checkpoints of a run when positive.
	Keep int `json:"keep"`
}

// StorageConfig groups the persistence settings.
type StorageConfig struct {
	Series      SeriesStorageConfig     `json:"series"`
	Checkpoints CheckpointStorageConfig `json:"checkpoints"`
}

// DefaultStorage keeps everything in memory.
func DefaultStorage() StorageConfig {
	return StorageConfig{
		Series:      SeriesStorageConfig{Backend: BackendMemory},
		Checkpoints: CheckpointStorageConfig{Backend: BackendMemory},
	}
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Series.Backend == "" {
		c.Series.Backend = BackendMemory
	}
	if c.Checkpoints.Backend == "" {
		c.Checkpoints.Backend = BackendMemory
	}
}

// Validate checks the backends and their paths.
func (c StorageConfig) Validate() error {
	switch c.Series.Backend {
	case BackendMemory:
	case BackendSQLite, BackendJSONL:
		if c.Series.Path == "" {
			return fmt.Errorf("series path is required for %s", c.Series.Backend)
		}
	default:
		return fmt.Errorf("unknown series backend %s", c.Series.Backend)
	}
	switch c.Checkpoints.Backend {
	case BackendMemory:
	case BackendSQLite, BackendFile:
		if c.Checkpoints.Path == "" {
			return fmt.Errorf("checkpoints path is required for %s", c.Checkpoints.Backend)
		}
	default:
		return fmt.Errorf("unknown checkpoints backend %s", c.Checkpoints.Backend)
	}
	if c.Checkpoints.Keep < 0 {
		return fmt.Errorf("keep must not be negative")
	}
	return nil
}

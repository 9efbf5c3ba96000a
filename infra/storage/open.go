package storage

import (
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/kilianp07/solaris/config"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/core/state"
)

// Stores groups the stores opened from a StorageConfig.
type Stores struct {
	Series      series.Store
	Checkpoints state.CheckpointStore
	closers     []io.Closer
}

// Open builds the series and checkpoint stores. Backends sharing a SQLite
// path share the database.
func Open(cfg config.StorageConfig) (*Stores, error) {
	s := &Stores{}
	dbs := map[string]*SQLite{}
	sqlite := func(path string) (*SQLite, error) {
		if db, ok := dbs[path]; ok {
			return db, nil
		}
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		dbs[path] = db
		s.closers = append(s.closers, db)
		return db, nil
	}

	var err error
	s.Series, err = openSeries(cfg.Series, sqlite)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.Series)
	s.Checkpoints, err = openCheckpoints(cfg.Checkpoints, sqlite)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.Checkpoints)
	return s, nil
}

func openSeries(cfg config.SeriesStorageConfig, sqlite func(string) (*SQLite, error)) (series.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db.Series(), nil
	case config.BackendJSONL:
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLSeriesStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLSeriesStore(cfg.Path)
	default:
		return series.NewMemoryStore(), nil
	}
}

func openCheckpoints(cfg config.CheckpointStorageConfig, sqlite func(string) (*SQLite, error)) (state.CheckpointStore, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite(cfg.Path)
		if err != nil {
			return nil, err
		}
		cs := db.Checkpoints()
		cs.Keep = cfg.Keep
		return cs, nil
	case config.BackendFile:
		fs, err := NewFileCheckpointStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		fs.Keep = cfg.Keep
		return fs, nil
	default:
		return state.NewMemoryStore(), nil
	}
}

// Close releases every store, the shared databases last.
func (s *Stores) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}

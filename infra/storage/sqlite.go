package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/core/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    step INTEGER NOT NULL,
    saved_at INTEGER NOT NULL,
    data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS checkpoints_run ON checkpoints (run_id, id);
CREATE TABLE IF NOT EXISTS samples (
    farm_id TEXT NOT NULL,
    step INTEGER NOT NULL,
    ts INTEGER NOT NULL,
    record TEXT NOT NULL,
    PRIMARY KEY (farm_id, step)
);
CREATE TABLE IF NOT EXISTS yield_steps (
    farm_id TEXT NOT NULL,
    step INTEGER NOT NULL,
    day INTEGER NOT NULL,
    actual_kwh REAL NOT NULL,
    ideal_kwh REAL NOT NULL,
    PRIMARY KEY (farm_id, step)
);
CREATE INDEX IF NOT EXISTS yield_steps_day ON yield_steps (farm_id, day);`

// SQLite is a database holding checkpoints, samples and daily yields. The
// stores returned by its accessors share the connection; closing them is a
// no-op and the database is released by SQLite.Close.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// Checkpoints returns the checkpoint store.
func (s *SQLite) Checkpoints() *SQLiteCheckpointStore { return &SQLiteCheckpointStore{db: s.db} }

// Series returns the sample store.
func (s *SQLite) Series() *SQLiteSeriesStore { return &SQLiteSeriesStore{db: s.db} }

// Yield returns the daily yield store.
func (s *SQLite) Yield() *SQLiteYieldStore { return &SQLiteYieldStore{db: s.db} }

// SQLiteCheckpointStore implements state.CheckpointStore.
type SQLiteCheckpointStore struct {
	db *sql.DB
	// Keep prunes all but the last Keep checkpoints of a run when positive.
	Keep int
}

// Put stores the blob.
func (s *SQLiteCheckpointStore) Put(ctx context.Context, runID string, step int, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, step, saved_at, data) VALUES (?, ?, ?, ?)`,
		runID, step, time.Now().UTC().UnixNano(), blob)
	if err != nil || s.Keep <= 0 {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE run_id = ? AND id NOT IN (
            SELECT id FROM checkpoints WHERE run_id = ? ORDER BY id DESC LIMIT ?)`,
		runID, runID, s.Keep)
	return err
}

// Latest returns the last checkpoint of runID, or of any run when empty.
func (s *SQLiteCheckpointStore) Latest(ctx context.Context, runID string) (state.Checkpoint, error) {
	query := `SELECT run_id, step, saved_at, data FROM checkpoints`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC LIMIT 1`
	var (
		cp    state.Checkpoint
		saved int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&cp.RunID, &cp.Step, &saved, &cp.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Checkpoint{}, state.ErrNoCheckpoint
	}
	if err != nil {
		return state.Checkpoint{}, err
	}
	cp.SavedAt = time.Unix(0, saved).UTC()
	return cp, nil
}

// Close is a no-op, see SQLite.
func (s *SQLiteCheckpointStore) Close() error { return nil }

// SQLiteSeriesStore implements series.Store and series.Truncater.
type SQLiteSeriesStore struct {
	db *sql.DB
}

// Append writes the sample. A sample with the same farm and step replaces
// the stored one.
func (s *SQLiteSeriesStore) Append(ctx context.Context, smp model.FarmSample) error {
	b, err := json.Marshal(smp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO samples (farm_id, step, ts, record) VALUES (?, ?, ?, ?)`,
		smp.FarmID, smp.Step, smp.Timestamp.UnixNano(), string(b))
	return err
}

// Query returns samples matching q in step order.
func (s *SQLiteSeriesStore) Query(ctx context.Context, q series.Query) ([]model.FarmSample, error) {
	var args []any
	query := `SELECT record FROM samples WHERE 1=1`
	if q.FarmID != "" {
		query += ` AND farm_id = ?`
		args = append(args, q.FarmID)
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query += ` ORDER BY farm_id, step`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.FarmSample
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var smp model.FarmSample
		if err := json.Unmarshal([]byte(data), &smp); err != nil {
			return nil, fmt.Errorf("unmarshal sample: %w", err)
		}
		res = append(res, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.Apply(res), nil
}

// TruncateAfter deletes the samples of farmID recorded after step.
func (s *SQLiteSeriesStore) TruncateAfter(ctx context.Context, farmID string, step int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE farm_id = ? AND step > ?`, farmID, step)
	return err
}

// Close is a no-op, see SQLite.
func (s *SQLiteSeriesStore) Close() error { return nil }

// SQLiteYieldStore implements yield.Store.
type SQLiteYieldStore struct {
	db *sql.DB
}

// Add stores the contribution of r.Step, replacing an earlier one.
func (s *SQLiteYieldStore) Add(r yield.Record) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO yield_steps (farm_id, step, day, actual_kwh, ideal_kwh)
        VALUES (?, ?, ?, ?, ?)`,
		r.FarmID, r.Step, yield.Day(r.Date).Unix(), r.ActualKWh, r.IdealKWh)
	return err
}

// Query returns the days between start and end inclusive.
func (s *SQLiteYieldStore) Query(farmID string, start, end time.Time) ([]yield.Record, error) {
	rows, err := s.db.Query(`SELECT day, SUM(actual_kwh), SUM(ideal_kwh) FROM yield_steps
        WHERE farm_id = ? AND day >= ? AND day <= ? GROUP BY day ORDER BY day`,
		farmID, yield.Day(start).Unix(), yield.Day(end).Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []yield.Record
	for rows.Next() {
		r := yield.Record{FarmID: farmID}
		var day int64
		if err := rows.Scan(&day, &r.ActualKWh, &r.IdealKWh); err != nil {
			return nil, err
		}
		r.Date = time.Unix(day, 0).UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}

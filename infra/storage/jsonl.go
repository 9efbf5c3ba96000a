package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
)

// maxLine bounds a JSONL record; a farm sample grows with the panel count.
const maxLine = 64 << 20

// JSONLSeriesStore stores samples in a JSONL file, one farm sample per line.
type JSONLSeriesStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLSeriesStore creates the file if needed.
func NewJSONLSeriesStore(path string) (*JSONLSeriesStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLSeriesStore{path: path}, nil
}

// Append implements series.Store.
func (s *JSONLSeriesStore) Append(_ context.Context, smp model.FarmSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(smp)
}

// Query implements series.Store.
func (s *JSONLSeriesStore) Query(_ context.Context, q series.Query) ([]model.FarmSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readSamples(s.path)
	if err != nil {
		return nil, err
	}
	return q.Apply(all), nil
}

// TruncateAfter rewrites the file without the samples of farmID recorded
// after step.
func (s *JSONLSeriesStore) TruncateAfter(_ context.Context, farmID string, step int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readSamples(s.path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".series-*")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(tmp)
	for _, smp := range all {
		if smp.FarmID == farmID && smp.Step > step {
			continue
		}
		if err := enc.Encode(smp); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Close implements series.Store.
func (s *JSONLSeriesStore) Close() error { return nil }

// RotatingJSONLSeriesStore stores samples in a JSONL file with automatic
// rotation. Rotated files are read back by Query but cannot be truncated.
type RotatingJSONLSeriesStore struct {
	logger *lumberjack.Logger
	path   string
	mu     sync.Mutex
}

// NewRotatingJSONLSeriesStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLSeriesStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLSeriesStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	return &RotatingJSONLSeriesStore{logger: lj, path: path}, nil
}

// Append writes the sample and triggers rotation if needed.
func (s *RotatingJSONLSeriesStore) Append(_ context.Context, smp model.FarmSample) error {
	b, err := json.Marshal(smp)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads the rotated backups oldest first, then the active file.
func (s *RotatingJSONLSeriesStore) Query(_ context.Context, q series.Query) ([]model.FarmSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	backups, err := filepath.Glob(strings.TrimSuffix(s.path, ext) + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(backups)
	var all []model.FarmSample
	for _, f := range append(backups, s.path) {
		smp, err := readSamples(f)
		if err != nil {
			return nil, err
		}
		all = append(all, smp...)
	}
	return q.Apply(all), nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLSeriesStore) Close() error {
	return s.logger.Close()
}

func readSamples(path string) ([]model.FarmSample, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return decodeSamples(f)
}

func decodeSamples(r io.Reader) ([]model.FarmSample, error) {
	var res []model.FarmSample
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var smp model.FarmSample
		if err := json.Unmarshal(line, &smp); err != nil {
			continue
		}
		res = append(res, smp)
	}
	return res, scanner.Err()
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

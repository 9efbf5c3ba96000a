// Package weather reads environment feeds from files.
package weather

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/model"
)

// Column names of the CSV header. timestamp, irradiance and temp_air are
// required, the others default to zero.
const (
	ColTimestamp  = "timestamp"
	ColPanelID    = "panel_id"
	ColIrradiance = "irradiance"
	ColTempAir    = "temp_air"
	ColWindSpeed  = "wind_speed"
	ColRain       = "rain_mm"
	ColClean      = "clean"
)

// CSVFeed serves the frames of a CSV weather file. Rows sharing a timestamp
// form one frame; a row with an empty panel_id is the shared sample.
type CSVFeed struct {
	*driver.SliceFeed
	frames int
}

// OpenCSV reads the file at path.
func OpenCSV(path string) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	feed, err := NewCSVFeed(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return feed, nil
}

// NewCSVFeed parses every row of r. Frames are ordered by timestamp.
func NewCSVFeed(r io.Reader) (*CSVFeed, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header")
		}
		return nil, err
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}
	cr.FieldsPerRecord = len(header)

	byTime := map[time.Time]*driver.Frame{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		id, sample, err := parseRow(cols, rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts := sample.Timestamp
		fr, ok := byTime[ts]
		if !ok {
			fr = &driver.Frame{Timestamp: ts}
			byTime[ts] = fr
		}
		if id == "" {
			if fr.Shared != nil {
				return nil, fmt.Errorf("line %d: duplicate shared row at %s", line, ts.Format(time.RFC3339))
			}
			s := sample
			fr.Shared = &s
			continue
		}
		if fr.PerPanel == nil {
			fr.PerPanel = map[string]model.EnvironmentSample{}
		}
		if _, dup := fr.PerPanel[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate row for panel %s at %s", line, id, ts.Format(time.RFC3339))
		}
		fr.PerPanel[id] = sample
	}

	frames := make([]driver.Frame, 0, len(byTime))
	for _, fr := range byTime {
		frames = append(frames, *fr)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp.Before(frames[j].Timestamp) })
	return &CSVFeed{SliceFeed: driver.NewSliceFeed(frames...), frames: len(frames)}, nil
}

// Len returns the number of frames in the file.
func (f *CSVFeed) Len() int { return f.frames }

func columns(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		cols[name] = i
	}
	for _, req := range []string{ColTimestamp, ColIrradiance, ColTempAir} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("missing column %q", req)
		}
	}
	return cols, nil
}

func parseRow(cols map[string]int, rec []string) (string, model.EnvironmentSample, error) {
	var s model.EnvironmentSample
	field := func(name string) string {
		if i, ok := cols[name]; ok {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	ts, err := time.Parse(time.RFC3339, field(ColTimestamp))
	if err != nil {
		return "", s, fmt.Errorf("timestamp: %w", err)
	}
	s.Timestamp = ts.UTC()
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{ColIrradiance, &s.IrradianceWm2},
		{ColTempAir, &s.AmbientTempC},
		{ColWindSpeed, &s.WindSpeedMS},
		{ColRain, &s.RainfallMM},
	} {
		v := field(f.name)
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return "", s, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if v := field(ColClean); v != "" {
		if s.Clean, err = strconv.ParseBool(v); err != nil {
			return "", s, fmt.Errorf("%s: %w", ColClean, err)
		}
	}
	return field(ColPanelID), s, nil
}

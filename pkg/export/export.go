// Package export writes farm samples to CSV, JSON or Parquet.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// Format is an output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Write encodes samples in the given format. With panels set, one row is
// written per panel and step instead of one per step.
func Write(w io.Writer, f Format, samples []model.FarmSample, panels bool) error {
	switch f {
	case FormatCSV:
		if panels {
			return WritePanelCSV(w, samples)
		}
		return WriteCSV(w, samples)
	case FormatJSON:
		if panels {
			return WriteJSON(w, PanelRows(samples))
		}
		return WriteJSON(w, samples)
	case FormatParquet:
		if panels {
			return WriteParquet(w, PanelRows(samples))
		}
		return WriteParquet(w, FarmRows(samples))
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes one row per step with the farm totals.
func WriteCSV(w io.Writer, samples []model.FarmSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "step", "farm_id", "total_ideal_w", "total_actual_w",
		"performance_ratio", "operational", "degraded", "failed"}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			s.Timestamp.Format(time.RFC3339),
			strconv.Itoa(s.Step),
			s.FarmID,
			formatFloat(s.TotalIdealW),
			formatFloat(s.TotalActualW),
			formatFloat(s.PerformanceRatio()),
			strconv.Itoa(s.Operational),
			strconv.Itoa(s.Degraded),
			strconv.Itoa(s.Failed),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePanelCSV writes one row per panel and step.
func WritePanelCSV(w io.Writer, samples []model.FarmSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "step", "farm_id", "panel_id", "status", "ideal_w",
		"actual_w", "voltage_v", "current_a", "soiling_level", "degradation_factor"}); err != nil {
		return err
	}
	for _, s := range samples {
		for _, p := range s.Panels {
			rec := []string{
				s.Timestamp.Format(time.RFC3339),
				strconv.Itoa(s.Step),
				s.FarmID,
				p.PanelID,
				p.Status.String(),
				formatFloat(p.Ideal.PowerW),
				formatFloat(p.Actual.PowerW),
				formatFloat(p.Actual.VoltageV),
				formatFloat(p.Actual.CurrentA),
				formatFloat(p.SoilingLevel),
				formatFloat(p.DegradationFactor),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

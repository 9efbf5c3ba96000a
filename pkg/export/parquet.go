package export

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/kilianp07/solaris/core/model"
)

// FarmRow is the flat record of one farm step.
type FarmRow struct {
	Timestamp        int64   `json:"timestamp" parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Step             int32   `json:"step" parquet:"name=step, type=INT32"`
	FarmID           string  `json:"farm_id" parquet:"name=farm_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalIdealW      float64 `json:"total_ideal_w" parquet:"name=total_ideal_w, type=DOUBLE"`
	TotalActualW     float64 `json:"total_actual_w" parquet:"name=total_actual_w, type=DOUBLE"`
	PerformanceRatio float64 `json:"performance_ratio" parquet:"name=performance_ratio, type=DOUBLE"`
	Operational      int32   `json:"operational" parquet:"name=operational, type=INT32"`
	Degraded         int32   `json:"degraded" parquet:"name=degraded, type=INT32"`
	Failed           int32   `json:"failed" parquet:"name=failed, type=INT32"`
}

// PanelRow is the flat record of one panel step.
type PanelRow struct {
	Timestamp         int64   `json:"timestamp" parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Step              int32   `json:"step" parquet:"name=step, type=INT32"`
	FarmID            string  `json:"farm_id" parquet:"name=farm_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PanelID           string  `json:"panel_id" parquet:"name=panel_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status            string  `json:"status" parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	IdealW            float64 `json:"ideal_w" parquet:"name=ideal_w, type=DOUBLE"`
	ActualW           float64 `json:"actual_w" parquet:"name=actual_w, type=DOUBLE"`
	VoltageV          float64 `json:"voltage_v" parquet:"name=voltage_v, type=DOUBLE"`
	CurrentA          float64 `json:"current_a" parquet:"name=current_a, type=DOUBLE"`
	SoilingLevel      float64 `json:"soiling_level" parquet:"name=soiling_level, type=DOUBLE"`
	DegradationFactor float64 `json:"degradation_factor" parquet:"name=degradation_factor, type=DOUBLE"`
}

// FarmRows flattens samples to farm rows.
func FarmRows(samples []model.FarmSample) []FarmRow {
	rows := make([]FarmRow, len(samples))
	for i, s := range samples {
		rows[i] = FarmRow{
			Timestamp:        s.Timestamp.UnixMilli(),
			Step:             int32(s.Step),
			FarmID:           s.FarmID,
			TotalIdealW:      s.TotalIdealW,
			TotalActualW:     s.TotalActualW,
			PerformanceRatio: s.PerformanceRatio(),
			Operational:      int32(s.Operational),
			Degraded:         int32(s.Degraded),
			Failed:           int32(s.Failed),
		}
	}
	return rows
}

// PanelRows flattens samples to panel rows.
func PanelRows(samples []model.FarmSample) []PanelRow {
	var rows []PanelRow
	for _, s := range samples {
		for _, p := range s.Panels {
			rows = append(rows, PanelRow{
				Timestamp:         s.Timestamp.UnixMilli(),
				Step:              int32(s.Step),
				FarmID:            s.FarmID,
				PanelID:           p.PanelID,
				Status:            p.Status.String(),
				IdealW:            p.Ideal.PowerW,
				ActualW:           p.Actual.PowerW,
				VoltageV:          p.Actual.VoltageV,
				CurrentA:          p.Actual.CurrentA,
				SoilingLevel:      p.SoilingLevel,
				DegradationFactor: p.DegradationFactor,
			})
		}
	}
	return rows
}

// WriteParquet writes rows as a single SNAPPY compressed Parquet file.
func WriteParquet[T FarmRow | PanelRow](w io.Writer, rows []T) (err error) {
	pw, err := writer.NewParquetWriterFromWriter(w, new(T), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	return pw.WriteStop()
}

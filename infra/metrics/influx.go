package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/infra/logger"
)

// InfluxSink writes farm samples and run events to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	// Panels controls whether a panel_state point is written for every panel.
	Panels bool
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
		Panels:   true,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordStep writes a farm_step point followed by one panel_state point per
// panel.
func (s *InfluxSink) RecordStep(sample model.FarmSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := []*write.Point{write.NewPointWithMeasurement("farm_step").
		AddTag("farm_id", sample.FarmID).
		AddField("step", sample.Step).
		AddField("ideal_w", round3(sample.TotalIdealW)).
		AddField("actual_w", round3(sample.TotalActualW)).
		AddField("performance_ratio", round3(sample.PerformanceRatio())).
		AddField("operational", sample.Operational).
		AddField("degraded", sample.Degraded).
		AddField("failed", sample.Failed).
		SetTime(sample.Timestamp)}
	if s.Panels {
		for _, p := range sample.Panels {
			points = append(points, write.NewPointWithMeasurement("panel_state").
				AddTag("farm_id", sample.FarmID).
				AddTag("panel_id", p.PanelID).
				AddTag("status", p.Status.String()).
				AddField("ideal_w", round3(p.Ideal.PowerW)).
				AddField("actual_w", round3(p.Actual.PowerW)).
				AddField("soiling_level", round3(p.SoilingLevel)).
				AddField("degradation_factor", round3(p.DegradationFactor)).
				SetTime(sample.Timestamp))
		}
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordStatusChange writes a panel health transition.
func (s *InfluxSink) RecordStatusChange(ev coremetrics.StatusChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("panel_status_change").
		AddTag("farm_id", ev.FarmID).
		AddTag("panel_id", ev.PanelID).
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCheckpoint writes the size and duration of a checkpoint.
func (s *InfluxSink) RecordCheckpoint(ev coremetrics.CheckpointEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("checkpoint").
		AddTag("run_id", ev.RunID).
		AddField("step", ev.Step).
		AddField("bytes", ev.Bytes).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMaintenance writes a maintenance action.
func (s *InfluxSink) RecordMaintenance(ev coremetrics.MaintenanceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("maintenance").
		AddTag("farm_id", ev.FarmID).
		AddTag("panel_id", ev.PanelID).
		AddTag("action", ev.Action).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStepLatency writes the compute time of a step.
func (s *InfluxSink) RecordStepLatency(l coremetrics.StepLatency) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("step_latency").
		AddTag("farm_id", l.FarmID).
		AddTag("step", strconv.Itoa(l.Step)).
		AddField("latency_ms", round3(l.Duration.Seconds()*1000)).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

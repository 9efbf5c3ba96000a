package metrics

import (
	"time"

	"github.com/kilianp07/solaris/core/factory"
	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		s, err := NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
			Panels *bool  `json:"panels"`
		}{}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		sink := NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket)
		if is, ok := sink.(*InfluxSink); ok && c.Panels != nil {
			is.Panels = *c.Panels
		}
		return sink, nil
	})

	_ = coremetrics.RegisterMetricsSink("yield", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		c := struct {
			EmissionFactor float64       `json:"emission_factor"`
			Step           time.Duration `json:"step"`
			Path           string        `json:"path"`
		}{Step: time.Hour}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store yield.Store
		if c.Path != "" {
			db, err := storage.OpenSQLite(c.Path)
			if err != nil {
				return nil, err
			}
			store = ownedYieldStore{SQLiteYieldStore: db.Yield(), db: db}
		}
		s, err := NewYieldSink(store, c.EmissionFactor, c.Step, prometheus.DefaultRegisterer)
		if err != nil {
			if store != nil {
				_ = store.(ownedYieldStore).Close()
			}
			return nil, err
		}
		return s, nil
	})
}

// ownedYieldStore closes the database it was opened from.
type ownedYieldStore struct {
	*storage.SQLiteYieldStore
	db *storage.SQLite
}

func (o ownedYieldStore) Close() error { return o.db.Close() }

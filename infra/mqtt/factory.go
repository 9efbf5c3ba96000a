package mqtt

import (
	"github.com/kilianp07/solaris/core/factory"
	coremetrics "github.com/kilianp07/solaris/core/metrics"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		cfg := Config{MaxRetries: 3, BackoffMS: 100}
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		p, err := NewPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Package factory builds modules named in configuration. A module entry is a
// type string plus raw settings; each type registers a Factory that decodes
// the settings with Decode and returns the implementation.
//
//	sinks := factory.NewRegistry[metrics.MetricsSink]()
//	_ = sinks.Register("yield", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return openYieldSink(c.Path)
//	})
//	sink, err := sinks.Create(factory.ModuleConfig{Type: "yield", Conf: map[string]any{"path": "kpi.db"}})
package factory

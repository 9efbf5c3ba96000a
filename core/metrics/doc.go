// Package metrics defines the sinks fed by the simulation driver. A sink
// records every farm sample and may implement optional recorders for status
// transitions, checkpoints, step latency and maintenance actions.
//
// Sinks are instantiated from configuration through a registry; the builtin
// ones (nop, prometheus, influx, yield, mqtt) are registered by the
// infra/metrics package. NewMetricsSink returns a MultiSink automatically
// when several sinks are configured.
package metrics

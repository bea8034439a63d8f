// Package metrics exposes expvar-published counters and gauges for flow
// loading and saving, edge validation and the runtime message registry. The
// server renders them on /debug/vars and, in Prometheus text format, on
// /metrics.
package metrics

package metrics

import (
	"expvar"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ContentType is the Prometheus text exposition content type.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

type meta struct {
	typ, help string
	label     string
}

var metas = map[string]meta{
	"agentflow_edges_dropped_total":    {typ: "counter", help: "Edges dropped while loading flows", label: "reason"},
	"agentflow_coercion_errors_total":  {typ: "counter", help: "Config values that failed to coerce on save", label: "expected"},
	"agentflow_events_published_total": {typ: "counter", help: "Runtime messages delivered to a slot", label: "kind"},
	"agentflow_events_dropped_total":   {typ: "counter", help: "Runtime messages without a subscribed slot", label: "kind"},
	"agentflow_events_evicted_total":   {typ: "counter", help: "Pending messages evicted from full subscriber buffers", label: "kind"},
	"agentflow_flows_loaded_total":     {typ: "counter", help: "Flows prepared for editing"},
	"agentflow_flows_saved_total":      {typ: "counter", help: "Flows written to the store"},
	"agentflow_unmatched_nodes_total":  {typ: "counter", help: "Nodes loaded without an agent definition"},
	"agentflow_subscribers":            {typ: "gauge", help: "Active message subscriptions"},
}

// WritePrometheus renders the expvar metrics in Prometheus text format.
// Unknown integer vars are written as untyped gauges; other vars are skipped.
func WritePrometheus(w io.Writer) {
	names := make([]string, 0, 64)
	expvar.Do(func(kv expvar.KeyValue) {
		names = append(names, kv.Key)
	})
	sort.Strings(names)

	for _, name := range names {
		v := expvar.Get(name)
		m, known := metas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", name)
				_, _ = fmt.Fprintf(w, "%s %s\n", name, iv.String())
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)

		mp, isMap := v.(*expvar.Map)
		if !isMap {
			_, _ = fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			_, _ = fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double-quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

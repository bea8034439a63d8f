package metrics

import (
	"expvar"
)

// Flow transform metrics keyed by reason or expected type.
var (
	edgesDropped   = expvar.NewMap("agentflow_edges_dropped_total")
	coercionErrors = expvar.NewMap("agentflow_coercion_errors_total")
)

// Registry metrics keyed by event kind.
var (
	eventsPublished = expvar.NewMap("agentflow_events_published_total")
	eventsDropped   = expvar.NewMap("agentflow_events_dropped_total")
	eventsEvicted   = expvar.NewMap("agentflow_events_evicted_total")
)

var (
	flowsLoaded    = new(expvar.Int)
	flowsSaved     = new(expvar.Int)
	unmatchedNodes = new(expvar.Int)
	subscribers    = new(expvar.Int)
)

func init() {
	expvar.Publish("agentflow_flows_loaded_total", flowsLoaded)
	expvar.Publish("agentflow_flows_saved_total", flowsSaved)
	expvar.Publish("agentflow_unmatched_nodes_total", unmatchedNodes)
	expvar.Publish("agentflow_subscribers", subscribers)
}

// Flow helpers
func IncFlowsLoaded() { flowsLoaded.Add(1) }
func IncFlowsSaved() { flowsSaved.Add(1) }
func AddUnmatchedNodes(n int) { unmatchedNodes.Add(int64(n)) }
func EdgeDropped(reason string) { edgesDropped.Add(reason, 1) }
func CoercionFailed(expected string) { coercionErrors.Add(expected, 1) }

// Registry helpers
func EventPublished(kind string) { eventsPublished.Add(kind, 1) }
func EventDropped(kind string) { eventsDropped.Add(kind, 1) }
func EventEvicted(kind string) { eventsEvicted.Add(kind, 1) }
func SetSubscribers(n int) { subscribers.Set(int64(n)) }

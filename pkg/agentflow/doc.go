// Package agentflow is the public façade over the flow transform. It
// re-exports the wire and editor flow types and the agent catalog types, and
// exposes a Runtime that loads, repairs and saves flows without importing
// internal packages.
package agentflow

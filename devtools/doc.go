// Package devtools bridges a store to external inspectors.
//
// The bridge records a timeline of mutations and actions, serializes module
// snapshots to JSON, and supports path queries and edits against those
// snapshots. Edits round-trip through ReplaceState so the committing scope
// holds for every write.
//
// # Architecture
//
// Attach subscribes the bridge ahead of user subscribers so the timeline
// reflects what user code is about to observe. Timeline events carry a
// unique ID; an action's start and settle events share the action's dispatch
// ID, which is how durations are computed.
package devtools

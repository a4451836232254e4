// Package session ties the clock and resolve layers together into one
// participant's runtime. A Session tracks per-plan state, emits events
// for local mutations, and folds remote events into convergent
// snapshots. It carries no transport: events go in and out as plain
// values.
package session

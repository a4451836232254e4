// Package clock provides the vector clock implementation used to track
// causality between collaborating plan sessions. Vector clocks enable
// conflict detection and resolution by maintaining per-session counters
// that capture happened-before relationships without synchronized
// wall-clock time.
package clock

// Package resolve implements deterministic conflict resolution for
// concurrent snapshots of a shared plan. Per-field strategies combine
// diverging values, arrays of keyed records merge by identity, and any
// participant that sees the same pair of versions computes the identical
// result.
package resolve

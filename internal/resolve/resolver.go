package resolve

import (
	"log/slog"
	"sort"
	"strconv"

	"plansync/internal/clock"
)

// Source labels which side a resolution came from.
type Source int

const (
	// SourceLocal means the local snapshot survived unchanged.
	SourceLocal Source = iota
	// SourceRemote means the remote snapshot was adopted unchanged.
	SourceRemote
	// SourceMerged means the snapshots were concurrent and merged field
	// by field.
	SourceMerged
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceMerged:
		return "merged"
	}
	return "unknown"
}

// MarshalJSON encodes the source as its wire tag.
func (s Source) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(s.String())), nil
}

// FieldConflict records one top-level field whose local and remote
// values differed, and the strategy that combined them. The list is
// diagnostic: a strategy that keeps one side unchanged still produces
// an entry.
type FieldConflict struct {
	Field    string   `json:"field"`
	Local    any      `json:"local_value"`
	Remote   any      `json:"remote_value"`
	Strategy Strategy `json:"resolution"`
}

// Resolution is the outcome of resolving two snapshots of one plan.
// Clock always dominates both input clocks, so comparing it against
// either original yields After and convergence is monotonic.
type Resolution struct {
	Resolved  Document          `json:"resolved"`
	Source    Source            `json:"source"`
	Clock     clock.VectorClock `json:"clock"`
	Conflicts []FieldConflict   `json:"conflicts"`
}

// Resolver merges concurrent document snapshots under a field policy.
// All operations are pure with respect to their inputs: documents are
// never mutated, merged results are fresh values. A Resolver is safe
// for concurrent use.
type Resolver struct {
	policy *Policy
	meta   Meta
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMeta overrides the bookkeeping key names. Empty fields keep their
// conventional defaults.
func WithMeta(m Meta) Option {
	return func(r *Resolver) {
		r.meta = m.withDefaults()
	}
}

// WithLogger routes resolver and policy diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver owning the given policy. A nil policy
// gets DefaultPolicy.
func NewResolver(policy *Policy, opts ...Option) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}
	r := &Resolver{
		policy: policy,
		meta:   DefaultMeta(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy.setLogger(r.logger)
	return r
}

// Policy returns the field policy the resolver dispatches on.
func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Meta returns the bookkeeping key names in effect.
func (r *Resolver) Meta() Meta {
	return r.meta
}

// ResolveField combines one field's local and remote values. Identical
// values pass through untouched, and a present side always beats an
// absent one; only genuinely differing pairs dispatch on the field's
// registered strategy.
func (r *Resolver) ResolveField(field string, local, remote any, localTS, remoteTS int64) any {
	if deepEqual(local, remote) {
		return local
	}
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}

	switch r.policy.FieldStrategy(field) {
	case TrueWins:
		return truthy(local) || truthy(remote)
	case MergeArrays:
		return r.mergeArrays(local, remote, localTS, remoteTS)
	case MaxValue:
		return r.pickNumeric(local, remote, localTS, remoteTS, true)
	case MinValue:
		return r.pickNumeric(local, remote, localTS, remoteTS, false)
	case PreferLocal:
		return local
	case PreferRemote:
		return remote
	default:
		if remoteTS > localTS {
			return remote
		}
		return local
	}
}

// pickNumeric selects the numerically larger (max=true) or smaller
// value, preserving the raw value of the winning side. Ties keep local.
// When either side is not numeric the pair falls back to
// last-writer-wins.
func (r *Resolver) pickNumeric(local, remote any, localTS, remoteTS int64, max bool) any {
	lf, lok := toFloat(local)
	rf, rok := toFloat(remote)
	if !lok || !rok {
		if remoteTS > localTS {
			return remote
		}
		return local
	}
	if (max && rf > lf) || (!max && rf < lf) {
		return remote
	}
	return local
}

// mergeArrays unions two record sequences by identity. A record present
// on only one side is kept unconditionally; matched identities merge
// field by field, each record's own timestamp taking precedence over
// the sequence-level one. Output is ordered by identity so the result
// does not depend on which side was local. Records without an identity
// pass through after the keyed ones, local side first.
func (r *Resolver) mergeArrays(local, remote any, localTS, remoteTS int64) []any {
	localSeq := asArray(local)
	remoteSeq := asArray(remote)

	byID := make(map[string]Document, len(localSeq)+len(remoteSeq))
	ids := make([]string, 0, len(localSeq)+len(remoteSeq))
	unkeyed := make([]any, 0)

	for _, rec := range localSeq {
		doc, id, ok := r.meta.identityOf(rec)
		if !ok {
			unkeyed = append(unkeyed, rec)
			continue
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = doc
	}

	for _, rec := range remoteSeq {
		doc, id, ok := r.meta.identityOf(rec)
		if !ok {
			if !containsEqual(unkeyed, rec) {
				unkeyed = append(unkeyed, rec)
			}
			continue
		}
		existing, seen := byID[id]
		if !seen {
			byID[id] = doc
			ids = append(ids, id)
			continue
		}
		merged, nested := r.ResolveItem(existing, doc,
			r.meta.timestampOf(existing, localTS),
			r.meta.timestampOf(doc, remoteTS))
		if len(nested) > 0 {
			r.logger.Debug("merged concurrent records",
				"identity", id, "fields", len(nested))
		}
		byID[id] = merged
	}

	sort.Strings(ids)
	out := make([]any, 0, len(ids)+len(unkeyed))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	out = append(out, unkeyed...)
	return out
}

// ResolveItem merges two snapshots of a single keyed record field by
// field. Items do not carry clocks of their own; they inherit the
// parent document's causal ordering, so the timestamps are the only
// tiebreaker.
func (r *Resolver) ResolveItem(local, remote Document, localTS, remoteTS int64) (Document, []FieldConflict) {
	if local == nil && remote == nil {
		return nil, nil
	}
	if local == nil {
		return copyDoc(remote), nil
	}
	if remote == nil {
		return copyDoc(local), nil
	}

	out := copyDoc(local)
	conflicts := r.mergeFields(out, local, remote, localTS, remoteTS)
	return out, conflicts
}

// ResolvePlan resolves two snapshots of one plan according to the
// causal relation of their clocks. When one side dominates, that side
// is returned verbatim with no conflicts recorded; only genuinely
// concurrent snapshots merge field by field.
func (r *Resolver) ResolvePlan(local, remote Document, localClock, remoteClock clock.VectorClock) Resolution {
	mergedClock := localClock.Merge(remoteClock)

	if local == nil || remote == nil {
		res := Resolution{Source: SourceLocal, Clock: mergedClock, Conflicts: []FieldConflict{}}
		if local == nil && remote != nil {
			res.Resolved = copyDoc(remote)
			res.Source = SourceRemote
		} else {
			res.Resolved = copyDoc(local)
		}
		return res
	}

	switch localClock.Compare(remoteClock) {
	case clock.Before:
		return Resolution{
			Resolved:  copyDoc(remote),
			Source:    SourceRemote,
			Clock:     mergedClock,
			Conflicts: []FieldConflict{},
		}
	case clock.After, clock.Equal:
		return Resolution{
			Resolved:  copyDoc(local),
			Source:    SourceLocal,
			Clock:     mergedClock,
			Conflicts: []FieldConflict{},
		}
	}

	out := copyDoc(local)
	conflicts := r.mergeFields(out, local, remote,
		r.meta.timestampOf(local, 0), r.meta.timestampOf(remote, 0))

	return Resolution{
		Resolved:  out,
		Source:    SourceMerged,
		Clock:     mergedClock,
		Conflicts: conflicts,
	}
}

// mergeFields resolves remote's fields into out, which starts as a copy
// of local. Fields are walked in sorted order so the conflict list is
// deterministic. The identity field is carried, never resolved; the
// timestamp field is bookkeeping, settled by stampLatest.
func (r *Resolver) mergeFields(out, local, remote Document, localTS, remoteTS int64) []FieldConflict {
	fields := make([]string, 0, len(remote))
	for k := range remote {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	conflicts := make([]FieldConflict, 0)
	for _, field := range fields {
		if field == r.meta.IdentityField || field == r.meta.TimestampField {
			continue
		}
		localVal, remoteVal := local[field], remote[field]
		if deepEqual(localVal, remoteVal) {
			continue
		}
		strategy := r.policy.FieldStrategy(field)
		conflicts = append(conflicts, FieldConflict{
			Field:    field,
			Local:    localVal,
			Remote:   remoteVal,
			Strategy: strategy,
		})
		out[field] = r.ResolveField(field, localVal, remoteVal, localTS, remoteTS)
	}

	r.stampLatest(out, local, remote)
	return conflicts
}

// stampLatest carries the later of the two modification timestamps into
// the merged record, preserving the winning side's raw value. A record
// never gains a timestamp field neither side had.
func (r *Resolver) stampLatest(out, local, remote Document) {
	field := r.meta.TimestampField
	localRaw, lok := local[field]
	remoteRaw, rok := remote[field]
	switch {
	case lok && rok:
		lf, _ := toFloat(localRaw)
		rf, _ := toFloat(remoteRaw)
		if rf > lf {
			out[field] = remoteRaw
		} else {
			out[field] = localRaw
		}
	case rok:
		out[field] = remoteRaw
	}
}

// HasConflict reports whether the two clocks are concurrent, meaning a
// field-level merge is required.
func HasConflict(local, remote clock.VectorClock) bool {
	return local.IsConcurrent(remote)
}

// ShouldApplyRemote reports whether the remote side can be adopted
// without a merge: the remote clock strictly dominates the local one,
// or the two are identical.
func ShouldApplyRemote(local, remote clock.VectorClock) bool {
	rel := local.Compare(remote)
	return rel == clock.Before || rel == clock.Equal
}

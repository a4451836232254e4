package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"plansync/internal/clock"
	"plansync/internal/resolve"
	"plansync/internal/roster"
)

// Event is the unit of exchange between sessions: a full plan snapshot
// together with the clock it was produced under and the session that
// produced it. Seq is the origin's own counter after the mutation,
// useful to transports for ordering and dedup.
type Event struct {
	PlanID   string            `json:"plan_id"`
	Snapshot resolve.Document  `json:"snapshot"`
	Clock    clock.VectorClock `json:"clock"`
	Origin   string            `json:"origin"`
	Seq      int64             `json:"seq"`
}

// Outcome classifies what ApplyRemote did with an incoming event.
type Outcome int

const (
	// Discarded means the event was malformed or carried state this
	// session already dominates.
	Discarded Outcome = iota
	// Adopted means the remote snapshot strictly dominated and replaced
	// the local one.
	Adopted
	// KeptLocal means both sides were already at the same version.
	KeptLocal
	// Merged means the histories were concurrent and went through the
	// resolver.
	Merged
	// Stored means this was the first snapshot seen for the plan.
	Stored
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Discarded:
		return "DISCARDED"
	case Adopted:
		return "ADOPTED"
	case KeptLocal:
		return "KEPT_LOCAL"
	case Merged:
		return "MERGED"
	case Stored:
		return "STORED"
	default:
		return "UNKNOWN"
	}
}

// ApplyResult reports how an incoming event changed session state.
type ApplyResult struct {
	Outcome Outcome

	// Resolution carries the merge audit. Set only for Merged outcomes.
	Resolution *resolve.Resolution

	// StaleRemote signals that the sender is behind this session and
	// needs the local state re-broadcast.
	StaleRemote bool
}

// Session is one participant's view of the shared plans. All state is
// copied on the way in and out, so callers never share internal maps.
// A Session is safe for concurrent use.
type Session struct {
	id       string
	resolver *resolve.Resolver
	roster   *roster.Roster
	logger   *slog.Logger

	mu    sync.RWMutex
	plans map[string]*planState
}

type planState struct {
	doc   resolve.Document
	clock clock.VectorClock
}

// Option configures a Session.
type Option func(*Session)

// WithRoster attaches a presence roster. Event origins are recorded in
// it, and CompactPlan consults it for the safe pruning floor.
func WithRoster(r *roster.Roster) Option {
	return func(s *Session) {
		s.roster = r
	}
}

// WithLogger routes session diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// New creates a session. An empty id gets a generated one; a nil
// resolver gets one with the default policy.
func New(id string, resolver *resolve.Resolver, opts ...Option) *Session {
	if id == "" {
		id = NewSessionID()
	}
	if resolver == nil {
		resolver = resolve.NewResolver(nil)
	}
	s := &Session{
		id:       id,
		resolver: resolver,
		logger:   slog.Default(),
		plans:    make(map[string]*planState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// LocalMutation replaces a plan's snapshot with the caller's new one,
// advances this session's counter, and returns the event to broadcast.
func (s *Session) LocalMutation(planID string, snapshot resolve.Document) Event {
	s.mu.Lock()
	state, ok := s.plans[planID]
	if !ok {
		state = &planState{clock: clock.New()}
		s.plans[planID] = state
	}
	state.doc = cloneDoc(snapshot)
	state.clock = state.clock.Increment(s.id)

	event := Event{
		PlanID:   planID,
		Snapshot: cloneDoc(state.doc),
		Clock:    state.clock.Copy(),
		Origin:   s.id,
		Seq:      state.clock.Get(s.id),
	}
	s.mu.Unlock()

	if s.roster != nil {
		s.roster.Observe(s.id)
	}
	return event
}

// ApplyRemote folds an incoming event into session state. The incoming
// clock is compared against the local one: a dominated event is
// discarded, a dominating one adopted wholesale, an equal one kept, and
// a concurrent one merged through the resolver. Re-delivery of an
// already-applied event is a no-op.
func (s *Session) ApplyRemote(event Event) ApplyResult {
	if event.PlanID == "" || event.Origin == "" {
		return ApplyResult{Outcome: Discarded}
	}
	if s.roster != nil {
		s.roster.Observe(event.Origin)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.plans[event.PlanID]
	if !ok {
		s.plans[event.PlanID] = &planState{
			doc:   cloneDoc(event.Snapshot),
			clock: event.Clock.Copy(),
		}
		s.logger.Debug("stored first snapshot", "plan", event.PlanID, "origin", event.Origin)
		return ApplyResult{Outcome: Stored}
	}

	switch event.Clock.Compare(state.clock) {
	case clock.Before:
		s.logger.Debug("discarded stale update", "plan", event.PlanID, "origin", event.Origin)
		return ApplyResult{Outcome: Discarded, StaleRemote: true}
	case clock.Equal:
		return ApplyResult{Outcome: KeptLocal}
	case clock.After:
		state.doc = cloneDoc(event.Snapshot)
		state.clock = event.Clock.Copy()
		s.logger.Debug("adopted newer snapshot", "plan", event.PlanID, "origin", event.Origin)
		return ApplyResult{Outcome: Adopted}
	}

	res := s.resolver.ResolvePlan(state.doc, event.Snapshot, state.clock, event.Clock)
	state.doc = res.Resolved
	state.clock = res.Clock

	s.logger.Info("merged concurrent update",
		"plan", event.PlanID, "origin", event.Origin, "conflicts", len(res.Conflicts))
	for _, c := range res.Conflicts {
		s.logger.Debug("field conflict resolved",
			"plan", event.PlanID, "field", c.Field, "strategy", c.Strategy.String())
	}
	return ApplyResult{Outcome: Merged, Resolution: &res}
}

// ApplySiblings reduces the local version and any number of rejoining
// versions of one plan to a single snapshot, then adopts it. Events for
// other plans are ignored.
func (s *Session) ApplySiblings(planID string, events []Event) resolve.SiblingResult {
	versions := make([]resolve.Versioned, 0, len(events)+1)

	s.mu.Lock()
	if state, ok := s.plans[planID]; ok {
		versions = append(versions, resolve.Versioned{Doc: state.doc, Clock: state.clock})
	}
	for _, ev := range events {
		if ev.PlanID != planID {
			continue
		}
		versions = append(versions, resolve.Versioned{Doc: ev.Snapshot, Clock: ev.Clock})
	}

	result := s.resolver.ReduceSiblings(versions)
	if !result.IsEmpty() {
		state, ok := s.plans[planID]
		if !ok {
			state = &planState{}
			s.plans[planID] = state
		}
		state.doc = cloneDoc(result.Resolved.Doc)
		state.clock = result.Resolved.Clock.Copy()
	}
	s.mu.Unlock()

	if s.roster != nil {
		for _, ev := range events {
			if ev.Origin != "" {
				s.roster.Observe(ev.Origin)
			}
		}
	}
	if result.HasConflict() {
		s.logger.Info("reduced divergent histories",
			"plan", planID, "siblings", result.Siblings, "stale", len(result.Stale))
	}
	return result
}

// CompactPlan drops retired-session counters from a plan's clock to
// bound its growth. The requested floor is capped by what the roster
// reports safe for the plan's clock; minSeq <= 0 means prune as deep as
// the roster allows. Without a roster attached nothing is pruned.
// Returns whether the stored clock changed.
func (s *Session) CompactPlan(planID string, minSeq int64) bool {
	if s.roster == nil {
		s.logger.Debug("compaction skipped, no roster attached", "plan", planID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.plans[planID]
	if !ok {
		return false
	}

	floor := s.roster.RetiredFloor(state.clock)
	if minSeq > 0 && minSeq < floor {
		floor = minSeq
	}
	if floor <= 0 {
		return false
	}

	pruned := state.clock.Prune(floor)
	if pruned.Len() == state.clock.Len() {
		return false
	}
	s.logger.Info("compacted plan clock",
		"plan", planID, "floor", floor, "dropped", state.clock.Len()-pruned.Len())
	state.clock = pruned
	return true
}

// Snapshot returns a copy of a plan's current document.
func (s *Session) Snapshot(planID string) (resolve.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.plans[planID]
	if !ok {
		return nil, false
	}
	return cloneDoc(state.doc), true
}

// Clock returns a copy of a plan's current vector clock.
func (s *Session) Clock(planID string) (clock.VectorClock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.plans[planID]
	if !ok {
		return nil, false
	}
	return state.clock.Copy(), true
}

// Plans returns the known plan IDs in sorted order.
func (s *Session) Plans() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.plans))
	for id := range s.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cloneDoc copies a document's top level so internal state is never
// aliased to caller maps.
func cloneDoc(doc resolve.Document) resolve.Document {
	if doc == nil {
		return nil
	}
	out := make(resolve.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

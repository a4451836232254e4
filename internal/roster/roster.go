package roster

import (
	"sort"
	"sync"
	"time"

	"plansync/internal/clock"
)

// Status represents the presence state of a participant session.
type Status int

const (
	Active Status = iota
	Idle
	Retired
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Idle:
		return "IDLE"
	case Retired:
		return "RETIRED"
	default:
		return "UNKNOWN"
	}
}

// Participant is one session known to the roster.
type Participant struct {
	ID       string
	Status   Status
	LastSeen time.Time
}

// Roster manages participant presence for a shared plan. It runs no
// goroutines of its own: every event observed calls Observe, and the
// caller drives decay by calling Sweep.
type Roster struct {
	mu       sync.RWMutex
	sessions map[string]*Participant

	idleAfter   time.Duration
	retireAfter time.Duration

	onChange func(active []string)
}

// New creates a roster. Sessions decay to Idle after idleAfter without
// events and to Retired after retireAfter. Non-positive durations get
// defaults of 5 and 30 minutes.
func New(idleAfter, retireAfter time.Duration) *Roster {
	if idleAfter <= 0 {
		idleAfter = 5 * time.Minute
	}
	if retireAfter <= 0 {
		retireAfter = 30 * time.Minute
	}
	if retireAfter < idleAfter {
		retireAfter = idleAfter
	}
	return &Roster{
		sessions:    make(map[string]*Participant),
		idleAfter:   idleAfter,
		retireAfter: retireAfter,
	}
}

// SetOnChange sets a callback invoked with the sorted active session IDs
// whenever presence changes. The callback runs synchronously on the
// mutating call, after the roster's lock is released.
func (r *Roster) SetOnChange(callback func(active []string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = callback
}

// Observe records that an event from the session was seen just now,
// creating it as Active or refreshing it back to Active. An empty ID is
// ignored. A retired session that speaks again rejoins as Active.
func (r *Roster) Observe(id string) {
	r.ObserveAt(id, time.Now())
}

// ObserveAt is Observe with an explicit timestamp, for callers that
// replay history or test decay.
func (r *Roster) ObserveAt(id string, now time.Time) {
	if id == "" {
		return
	}

	r.mu.Lock()
	p, exists := r.sessions[id]
	changed := false
	if !exists {
		r.sessions[id] = &Participant{ID: id, Status: Active, LastSeen: now}
		changed = true
	} else {
		if p.Status != Active {
			p.Status = Active
			changed = true
		}
		p.LastSeen = now
	}
	callback, active := r.changeSetLocked(changed)
	r.mu.Unlock()

	if callback != nil {
		callback(active)
	}
}

// MarkRetired retires a session explicitly, such as on a clean leave.
// Unknown IDs are recorded directly as retired so a late prune still
// accounts for them.
func (r *Roster) MarkRetired(id string) {
	if id == "" {
		return
	}

	r.mu.Lock()
	p, exists := r.sessions[id]
	changed := false
	if !exists {
		r.sessions[id] = &Participant{ID: id, Status: Retired, LastSeen: time.Now()}
		changed = true
	} else if p.Status != Retired {
		p.Status = Retired
		changed = true
	}
	callback, active := r.changeSetLocked(changed)
	r.mu.Unlock()

	if callback != nil {
		callback(active)
	}
}

// Sweep applies time-based decay as of now: Active sessions fall Idle
// after idleAfter without events, and any session falls Retired after
// retireAfter. Returns the number of sessions whose status changed.
func (r *Roster) Sweep(now time.Time) int {
	r.mu.Lock()
	changed := 0
	for _, p := range r.sessions {
		elapsed := now.Sub(p.LastSeen)
		switch {
		case p.Status != Retired && elapsed > r.retireAfter:
			p.Status = Retired
			changed++
		case p.Status == Active && elapsed > r.idleAfter:
			p.Status = Idle
			changed++
		}
	}
	callback, active := r.changeSetLocked(changed > 0)
	r.mu.Unlock()

	if callback != nil {
		callback(active)
	}
	return changed
}

// Status returns the session's presence state.
func (r *Roster) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.sessions[id]
	if !ok {
		return Active, false
	}
	return p.Status, true
}

// Active returns the sorted IDs of active sessions.
func (r *Roster) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked()
}

// Retired returns the sorted IDs of retired sessions.
func (r *Roster) Retired() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, p := range r.sessions {
		if p.Status == Retired {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of all participants, sorted by ID.
func (r *Roster) Snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]Participant, 0, len(r.sessions))
	for _, p := range r.sessions {
		snapshot = append(snapshot, *p)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].ID < snapshot[j].ID
	})
	return snapshot
}

// RetiredFloor returns the highest sequence floor that is safe to feed
// clock.Prune for the given plan clock: every entry at or below the
// floor belongs to a retired session, and no live session's entry can
// be dropped. Returns 0 when nothing is prunable. Sessions the roster
// has never seen count as live.
func (r *Roster) RetiredFloor(vc clock.VectorClock) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var maxRetired int64
	minLive := int64(-1)

	for id, counter := range vc {
		p, known := r.sessions[id]
		if known && p.Status == Retired {
			if counter > maxRetired {
				maxRetired = counter
			}
			continue
		}
		if minLive < 0 || counter < minLive {
			minLive = counter
		}
	}

	if maxRetired == 0 {
		return 0
	}
	if minLive >= 0 && maxRetired >= minLive {
		// A full prune would also drop a live session's entry; stop just
		// below the lowest live counter. Remaining retired entries wait
		// for the live sessions to advance.
		return minLive - 1
	}
	return maxRetired
}

// activeLocked must be called with at least a read lock held.
func (r *Roster) activeLocked() []string {
	ids := make([]string, 0)
	for id, p := range r.sessions {
		if p.Status == Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// changeSetLocked must be called with the write lock held. It returns
// the callback and its argument when one should fire, so the caller can
// invoke it after unlocking.
func (r *Roster) changeSetLocked(changed bool) (func([]string), []string) {
	if !changed || r.onChange == nil {
		return nil, nil
	}
	return r.onChange, r.activeLocked()
}

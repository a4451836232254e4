package it

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"plansync/internal/clock"
	"plansync/internal/resolve"
	"plansync/internal/roster"
	"plansync/internal/session"
)

// Presence windows wide enough that no sweep fires mid-test.
const (
	idleWindow   = 5 * time.Minute
	retireWindow = 30 * time.Minute
)

// Network wires several in-process sessions together through a
// buffered, unordered delivery fabric. Broadcast events queue in
// per-session inboxes and are drained in seeded-random order, so a
// single test can replay the same workload under many interleavings.
type Network struct {
	mu       sync.Mutex
	rng      *rand.Rand
	logger   *slog.Logger
	order    []string
	sessions map[string]*session.Session
	rosters  map[string]*roster.Roster
	inboxes  map[string][]session.Event
	held     map[string][]session.Event
	down     map[string]bool
}

// NewNetwork creates an empty network. The seed fixes the delivery
// order, so runs are reproducible.
func NewNetwork(seed int64) *Network {
	return &Network{
		rng:      rand.New(rand.NewSource(seed)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessions: make(map[string]*session.Session),
		rosters:  make(map[string]*roster.Roster),
		inboxes:  make(map[string][]session.Event),
		held:     make(map[string][]session.Event),
		down:     make(map[string]bool),
	}
}

// AddSession joins a new participant with its own presence roster.
func (n *Network) AddSession(id string) *session.Session {
	n.mu.Lock()
	defer n.mu.Unlock()

	r := roster.New(idleWindow, retireWindow)
	s := session.New(id, nil, session.WithRoster(r), session.WithLogger(n.logger))
	n.sessions[id] = s
	n.rosters[id] = r
	n.order = append(n.order, id)
	return s
}

// Session returns a participant by ID, or nil.
func (n *Network) Session(id string) *session.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessions[id]
}

// Roster returns a participant's presence roster, or nil.
func (n *Network) Roster(id string) *roster.Roster {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rosters[id]
}

// Mutate applies a local mutation on one session and broadcasts the
// resulting event to every other participant's inbox. Mutations made
// while partitioned are held back until Heal.
func (n *Network) Mutate(id, planID string, doc resolve.Document) (session.Event, error) {
	n.mu.Lock()
	s, ok := n.sessions[id]
	n.mu.Unlock()
	if !ok {
		return session.Event{}, fmt.Errorf("session %s not found", id)
	}

	ev := s.LocalMutation(planID, doc)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.down[id] {
		n.held[id] = append(n.held[id], ev)
		return ev, nil
	}
	n.broadcastLocked(id, ev)
	return ev, nil
}

// broadcastLocked queues an event for every participant except its
// origin. Callers hold n.mu.
func (n *Network) broadcastLocked(origin string, ev session.Event) {
	for _, id := range n.order {
		if id == origin {
			continue
		}
		n.inboxes[id] = append(n.inboxes[id], ev)
	}
}

// Duplicate re-queues an already broadcast event for every participant,
// modeling at-least-once delivery.
func (n *Network) Duplicate(ev session.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcastLocked(ev.Origin, ev)
}

// DeliverAll drains every reachable inbox, picking both the receiving
// session and the event within its inbox at random. Returns the number
// of events delivered. Inboxes of partitioned sessions stay queued.
func (n *Network) DeliverAll() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	delivered := 0
	for {
		ready := make([]string, 0, len(n.order))
		for _, id := range n.order {
			if !n.down[id] && len(n.inboxes[id]) > 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return delivered
		}

		id := ready[n.rng.Intn(len(ready))]
		box := n.inboxes[id]
		j := n.rng.Intn(len(box))
		ev := box[j]
		n.inboxes[id] = append(box[:j], box[j+1:]...)

		n.sessions[id].ApplyRemote(ev)
		delivered++
	}
}

// Pending returns the number of queued, undelivered events.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0
	for _, box := range n.inboxes {
		total += len(box)
	}
	return total
}

// Partition disconnects a session: nothing is delivered to it and its
// own mutations are held back.
func (n *Network) Partition(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.sessions[id]; !ok {
		return fmt.Errorf("session %s not found", id)
	}
	n.down[id] = true
	return nil
}

// Heal reconnects a partitioned session. Its held mutations flow out to
// the rest of the network, and the rejoining session folds every
// reachable participant's current version of planID through sibling
// reduction. Queued inbox events resume on the next DeliverAll.
func (n *Network) Heal(id, planID string) (resolve.SiblingResult, error) {
	n.mu.Lock()
	s, ok := n.sessions[id]
	if !ok {
		n.mu.Unlock()
		return resolve.SiblingResult{}, fmt.Errorf("session %s not found", id)
	}
	n.down[id] = false

	for _, ev := range n.held[id] {
		n.broadcastLocked(id, ev)
	}
	n.held[id] = nil

	versions := make([]session.Event, 0, len(n.order))
	for _, other := range n.order {
		if other == id || n.down[other] {
			continue
		}
		peer := n.sessions[other]
		doc, ok := peer.Snapshot(planID)
		if !ok {
			continue
		}
		clk, _ := peer.Clock(planID)
		versions = append(versions, session.Event{
			PlanID:   planID,
			Snapshot: doc,
			Clock:    clk,
			Origin:   other,
			Seq:      clk.Get(other),
		})
	}
	n.mu.Unlock()

	return s.ApplySiblings(planID, versions), nil
}

// Retire marks a session permanently gone in every other participant's
// roster and disconnects it.
func (n *Network) Retire(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.sessions[id]; !ok {
		return fmt.Errorf("session %s not found", id)
	}
	n.down[id] = true
	for other, r := range n.rosters {
		if other == id {
			continue
		}
		r.MarkRetired(id)
	}
	return nil
}

// Compact runs clock compaction on every reachable session and returns
// how many of them actually shrank their clock.
func (n *Network) Compact(planID string, minSeq int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	changed := 0
	for _, id := range n.order {
		if n.down[id] {
			continue
		}
		if n.sessions[id].CompactPlan(planID, minSeq) {
			changed++
		}
	}
	return changed
}

// Fingerprints renders each participant's view of a plan as canonical
// JSON of the document and its clock. Sessions that do not know the
// plan are omitted. The network has converged exactly when every value
// is identical.
func (n *Network) Fingerprints(planID string) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[string]string, len(n.order))
	for _, id := range n.order {
		doc, ok := n.sessions[id].Snapshot(planID)
		if !ok {
			continue
		}
		clk, _ := n.sessions[id].Clock(planID)
		view := struct {
			Plan  resolve.Document  `json:"plan"`
			Clock clock.VectorClock `json:"clock"`
		}{doc, clk}
		b, err := json.Marshal(view)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", id, err)
		}
		out[id] = string(b)
	}
	return out, nil
}

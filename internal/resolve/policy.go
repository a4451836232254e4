package resolve

import (
	"log/slog"
	"sync"
)

// Policy maps field names to resolution strategies. Fields without a
// registered strategy fall back to the policy default, LastWriterWins
// unless changed. A Policy is safe for concurrent use; registration is
// expected at initialization, reads on every merge.
type Policy struct {
	mu       sync.RWMutex
	fields   map[string]Strategy
	fallback Strategy
	logger   *slog.Logger
}

// NewPolicy returns an empty policy with LastWriterWins as the default.
func NewPolicy() *Policy {
	return &Policy{
		fields:   make(map[string]Strategy),
		fallback: LastWriterWins,
		logger:   slog.Default(),
	}
}

// DefaultPolicy returns a policy preloaded with the shared-plan field
// behaviors: completion flags are irreversible, and the child
// collections merge by record identity.
func DefaultPolicy() *Policy {
	p := NewPolicy()
	p.fields["completed"] = TrueWins
	p.fields["items"] = MergeArrays
	p.fields["permissions"] = MergeArrays
	p.fields["notes"] = MergeArrays
	return p
}

// FieldStrategy returns the strategy registered for field, or the
// policy default when the field has none.
func (p *Policy) FieldStrategy(field string) Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.fields[field]; ok {
		return s
	}
	return p.fallback
}

// Register binds a field name to a strategy. An unrecognized strategy or
// an empty field name leaves the policy untouched; the rejection is
// logged at warn level, never panics.
func (p *Policy) Register(field string, s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if field == "" || !s.valid() {
		p.logger.Warn("ignoring invalid strategy registration",
			"field", field, "strategy", int(s))
		return
	}
	p.fields[field] = s
}

// SetDefault replaces the fallback strategy for unregistered fields.
// Unrecognized strategies are rejected the same way Register rejects them.
func (p *Policy) SetDefault(s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !s.valid() {
		p.logger.Warn("ignoring invalid default strategy", "strategy", int(s))
		return
	}
	p.fallback = s
}

// Default returns the fallback strategy for unregistered fields.
func (p *Policy) Default() Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fallback
}

// Fields returns a copy of the registered field strategies.
func (p *Policy) Fields() map[string]Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Strategy, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

func (p *Policy) setLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	p.mu.Lock()
	p.logger = l
	p.mu.Unlock()
}

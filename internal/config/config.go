package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"plansync/internal/resolve"
)

var validate = validator.New()

// PolicyFile is the on-disk YAML schema for field resolution policies:
//
//	default: last_writer_wins
//	fields:
//	  completed: true_wins
//	  items: merge_arrays
//
// Unknown strategy tags fail validation. Config files are explicit; the
// forgiving no-op behavior applies to runtime registration, not files.
type PolicyFile struct {
	Default string            `yaml:"default" validate:"omitempty,oneof=last_writer_wins true_wins merge_arrays max_value min_value prefer_local prefer_remote"`
	Fields  map[string]string `yaml:"fields" validate:"omitempty,dive,oneof=last_writer_wins true_wins merge_arrays max_value min_value prefer_local prefer_remote"`
}

// LoadPolicy reads and parses a policy file.
func LoadPolicy(path string) (*resolve.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy parses YAML policy bytes into a resolve.Policy. The file
// describes the complete policy: fields it does not name fall back to
// its default tag, or last_writer_wins when that is absent.
func ParsePolicy(data []byte) (*resolve.Policy, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}
	return file.Policy()
}

// Policy converts the parsed file into a resolve.Policy.
func (f *PolicyFile) Policy() (*resolve.Policy, error) {
	p := resolve.NewPolicy()

	if f.Default != "" {
		s, ok := resolve.ParseStrategy(f.Default)
		if !ok {
			return nil, fmt.Errorf("unknown default strategy %q", f.Default)
		}
		p.SetDefault(s)
	}

	for field, tag := range f.Fields {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("empty field name in policy")
		}
		s, ok := resolve.ParseStrategy(tag)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q for field %q", tag, field)
		}
		p.Register(field, s)
	}
	return p, nil
}

// ParseFieldStrategies parses a comma-separated list of field strategies
// in the format:
// "completed=true_wins,name=last_writer_wins"
func ParseFieldStrategies(list string) (map[string]resolve.Strategy, error) {
	strategies := make(map[string]resolve.Strategy)
	if list == "" {
		return strategies, nil
	}

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid field strategy format: %s (expected field=strategy)", part)
		}

		field := strings.TrimSpace(kv[0])
		tag := strings.TrimSpace(kv[1])

		if field == "" || tag == "" {
			return nil, fmt.Errorf("field name and strategy cannot be empty: %s", part)
		}

		s, ok := resolve.ParseStrategy(tag)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q for field %q", tag, field)
		}
		strategies[field] = s
	}

	return strategies, nil
}

// SessionConfig holds the settings for one participant session.
type SessionConfig struct {
	SessionID   string        `yaml:"session_id"`
	IdleAfter   time.Duration `yaml:"idle_after"`
	RetireAfter time.Duration `yaml:"retire_after"`
}

// WithDefaults fills the zero values: a generated session ID and the
// standard presence timeouts.
func (c SessionConfig) WithDefaults() SessionConfig {
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = 5 * time.Minute
	}
	if c.RetireAfter <= 0 {
		c.RetireAfter = 30 * time.Minute
	}
	return c
}

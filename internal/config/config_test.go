package config

import (
	"os"
	"path/filepath"
	"testing"

	"plansync/internal/resolve"
)

func TestParseFieldStrategies(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]resolve.Strategy
		wantErr bool
	}{
		{
			name:  "empty string",
			input: "",
			want:  map[string]resolve.Strategy{},
		},
		{
			name:  "single field",
			input: "completed=true_wins",
			want: map[string]resolve.Strategy{
				"completed": resolve.TrueWins,
			},
		},
		{
			name:  "multiple fields",
			input: "completed=true_wins,items=merge_arrays,budget=max_value",
			want: map[string]resolve.Strategy{
				"completed": resolve.TrueWins,
				"items":     resolve.MergeArrays,
				"budget":    resolve.MaxValue,
			},
		},
		{
			name:  "with spaces",
			input: "completed = true_wins , name = last_writer_wins",
			want: map[string]resolve.Strategy{
				"completed": resolve.TrueWins,
				"name":      resolve.LastWriterWins,
			},
		},
		{
			name:    "invalid format - no equals",
			input:   "completed:true_wins",
			wantErr: true,
		},
		{
			name:    "invalid format - empty field",
			input:   "=true_wins",
			wantErr: true,
		},
		{
			name:    "invalid format - empty strategy",
			input:   "completed=",
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			input:   "completed=newest_wins",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFieldStrategies(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFieldStrategies() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Errorf("ParseFieldStrategies() length = %d, want %d", len(got), len(tt.want))
				return
			}
			for field, strategy := range tt.want {
				if got[field] != strategy {
					t.Errorf("ParseFieldStrategies()[%s] = %v, want %v", field, got[field], strategy)
				}
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	data := []byte(`
default: prefer_local
fields:
  completed: true_wins
  items: merge_arrays
  budget: max_value
`)

	p, err := ParsePolicy(data)
	if err != nil {
		t.Fatalf("ParsePolicy() error = %v", err)
	}

	if p.Default() != resolve.PreferLocal {
		t.Errorf("Expected prefer_local default, got %v", p.Default())
	}
	if p.FieldStrategy("completed") != resolve.TrueWins {
		t.Errorf("Expected true_wins, got %v", p.FieldStrategy("completed"))
	}
	if p.FieldStrategy("items") != resolve.MergeArrays {
		t.Errorf("Expected merge_arrays, got %v", p.FieldStrategy("items"))
	}
	if p.FieldStrategy("unlisted") != resolve.PreferLocal {
		t.Errorf("Expected file default for unlisted field, got %v", p.FieldStrategy("unlisted"))
	}
}

func TestParsePolicy_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "unknown field strategy",
			data: "fields:\n  completed: newest_wins\n",
		},
		{
			name: "unknown default strategy",
			data: "default: newest_wins\n",
		},
		{
			name: "malformed yaml",
			data: "fields: [oops\n",
		},
		{
			name: "wrong shape",
			data: "fields: just-a-string\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(tt.data)); err == nil {
				t.Error("ParsePolicy() expected error, got nil")
			}
		})
	}
}

func TestParsePolicy_Empty(t *testing.T) {
	p, err := ParsePolicy([]byte(""))
	if err != nil {
		t.Fatalf("ParsePolicy() error = %v", err)
	}
	if p.Default() != resolve.LastWriterWins {
		t.Errorf("Expected last_writer_wins default, got %v", p.Default())
	}
	if len(p.Fields()) != 0 {
		t.Errorf("Expected no registered fields, got %v", p.Fields())
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	data := []byte("fields:\n  completed: true_wins\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	if p.FieldStrategy("completed") != resolve.TrueWins {
		t.Errorf("Expected true_wins, got %v", p.FieldStrategy("completed"))
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadPolicy() expected error for missing file, got nil")
	}
}

func TestSessionConfig_WithDefaults(t *testing.T) {
	c := SessionConfig{}.WithDefaults()

	if c.SessionID == "" {
		t.Error("Expected a generated session ID")
	}
	if c.IdleAfter <= 0 || c.RetireAfter <= 0 {
		t.Errorf("Expected positive timeouts, got %v / %v", c.IdleAfter, c.RetireAfter)
	}

	other := SessionConfig{}.WithDefaults()
	if other.SessionID == c.SessionID {
		t.Error("Expected distinct generated session IDs")
	}

	custom := SessionConfig{SessionID: "tab-7"}.WithDefaults()
	if custom.SessionID != "tab-7" {
		t.Errorf("Expected explicit session ID kept, got %s", custom.SessionID)
	}
}

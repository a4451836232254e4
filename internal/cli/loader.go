package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"plansync/internal/clock"
	"plansync/internal/resolve"
)

// Envelope is the on-disk form of a plan version: the snapshot plus the
// clock it was produced under. This is the tuple sessions broadcast,
// written to a file.
type Envelope struct {
	Snapshot resolve.Document  `json:"snapshot"`
	Clock    clock.VectorClock `json:"clock"`
}

// LoadError represents an input file that could not be used.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadEnvelope reads a {"snapshot": ..., "clock": ...} file.
func LoadEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &LoadError{Code: ErrCodeBadInput, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return &env, nil
}

// LoadClock reads a clock from a file holding either a bare clock
// object or a full envelope. Unlike clock.Deserialize, malformed input
// is an error here.
func LoadClock(path string) (clock.VectorClock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &LoadError{Code: ErrCodeBadInput, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	raw := data
	if clockRaw, ok := probe["clock"]; ok {
		raw = clockRaw
	}

	var entries map[string]int64
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &LoadError{Code: ErrCodeBadInput, Message: fmt.Sprintf("parsing clock in %s: %v", path, err)}
	}
	return clock.FromMap(entries), nil
}

// inputError reports an unusable input and converts it to a command
// exit.
func inputError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = f.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeNotFound = "E002" // Input file not found or unreadable
	ErrCodeBadInput = "E003" // Input file failed to parse
	ErrCodePolicy   = "E004" // Policy file or --fields flag rejected
)

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"plansync/internal/clock"
	"plansync/internal/resolve"
)

// InspectOutput summarizes one snapshot envelope.
type InspectOutput struct {
	Identity  any               `json:"identity,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Sessions  int               `json:"sessions"`
	Clock     clock.VectorClock `json:"clock"`
	Fields    []string          `json:"fields"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.json>",
		Short: "Inspect a snapshot envelope",
		Long: `Print a snapshot envelope's identity, bookkeeping timestamp, vector
clock, and top-level fields.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	env, err := LoadEnvelope(path)
	if err != nil {
		return inputError(formatter, err)
	}

	meta := resolve.DefaultMeta()
	out := InspectOutput{
		Identity: env.Snapshot[meta.IdentityField],
		Sessions: env.Clock.Len(),
		Clock:    env.Clock,
		Fields:   make([]string, 0, len(env.Snapshot)),
	}
	if raw, ok := env.Snapshot[meta.TimestampField]; ok {
		if ts, ok := raw.(float64); ok {
			out.Timestamp = int64(ts)
		}
	}
	for field := range env.Snapshot {
		if field == meta.IdentityField || field == meta.TimestampField {
			continue
		}
		out.Fields = append(out.Fields, field)
	}
	sort.Strings(out.Fields)

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	if out.Identity != nil {
		fmt.Fprintf(formatter.Writer, "identity:  %v\n", out.Identity)
	}
	if out.Timestamp != 0 {
		fmt.Fprintf(formatter.Writer, "timestamp: %d\n", out.Timestamp)
	}
	fmt.Fprintf(formatter.Writer, "clock:     %s (%d sessions)\n", out.Clock, out.Sessions)
	fmt.Fprintf(formatter.Writer, "fields:    %s\n", strings.Join(out.Fields, ", "))
	return nil
}

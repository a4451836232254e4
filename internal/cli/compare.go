package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"plansync/internal/clock"
)

// CompareOutput holds the causal comparison of two clocks.
type CompareOutput struct {
	Relation string            `json:"relation"`
	Left     clock.VectorClock `json:"left"`
	Right    clock.VectorClock `json:"right"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <left.json> <right.json>",
		Short: "Compare two vector clocks",
		Long: `Compare the vector clocks in two files and print their causal relation.

Each file holds either a bare clock object ({"sessionId": counter, ...}) or a
full snapshot envelope with a "clock" member. Exits 1 when the clocks are
concurrent, so scripts can branch on divergence.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runCompare(opts *RootOptions, leftPath, rightPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	left, err := LoadClock(leftPath)
	if err != nil {
		return inputError(formatter, err)
	}
	right, err := LoadClock(rightPath)
	if err != nil {
		return inputError(formatter, err)
	}
	formatter.VerboseLog("Loaded %s (%d sessions) and %s (%d sessions)",
		leftPath, left.Len(), rightPath, right.Len())

	relation := left.Compare(right)

	if formatter.Format == "json" {
		out := CompareOutput{
			Relation: relation.String(),
			Left:     left,
			Right:    right,
		}
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "left:     %s\n", left)
		fmt.Fprintf(formatter.Writer, "right:    %s\n", right)
		fmt.Fprintf(formatter.Writer, "relation: %s\n", relation)
	}

	if relation == clock.Concurrent {
		return NewExitError(ExitFailure, "clocks are concurrent")
	}
	return nil
}

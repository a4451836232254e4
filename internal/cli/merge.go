package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"plansync/internal/clock"
	"plansync/internal/config"
	"plansync/internal/resolve"
)

// MergeOutput is the merge report: the resolved snapshot, the clock it
// carries, and the per-field conflict audit.
type MergeOutput struct {
	Source    resolve.Source          `json:"source"`
	Merged    resolve.Document        `json:"merged"`
	Clock     clock.VectorClock       `json:"clock"`
	Conflicts []resolve.FieldConflict `json:"conflicts"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		localPath  string
		remotePath string
		policyPath string
		fieldsFlag string
	)

	cmd := &cobra.Command{
		Use:   "merge --local <l.json> --remote <r.json>",
		Short: "Merge two divergent snapshot files",
		Long: `Merge two snapshot envelopes exactly the way live sessions do.

Each input is a {"snapshot": ..., "clock": ...} file. When one clock dominates
the other, the dominating snapshot passes through unchanged; concurrent clocks
go field-by-field through the conflict policy. The merged clock always
dominates both inputs.

The policy defaults to the built-in travel-plan one (completed: true_wins;
items, permissions, notes: merge_arrays). --policy replaces it with a YAML
policy file; --fields overrides individual fields on top.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, localPath, remotePath, policyPath, fieldsFlag, cmd)
		},
	}

	cmd.Flags().StringVar(&localPath, "local", "", "local snapshot envelope (required)")
	cmd.Flags().StringVar(&remotePath, "remote", "", "remote snapshot envelope (required)")
	cmd.Flags().StringVar(&policyPath, "policy", "", "YAML policy file replacing the built-in policy")
	cmd.Flags().StringVar(&fieldsFlag, "fields", "", "per-field strategy overrides (field=strategy,...)")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("remote")

	return cmd
}

func runMerge(opts *RootOptions, localPath, remotePath, policyPath, fieldsFlag string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	local, err := LoadEnvelope(localPath)
	if err != nil {
		return inputError(formatter, err)
	}
	remote, err := LoadEnvelope(remotePath)
	if err != nil {
		return inputError(formatter, err)
	}

	policy, err := buildPolicy(policyPath, fieldsFlag)
	if err != nil {
		_ = formatter.Error(ErrCodePolicy, err.Error(), nil)
		return WrapExitError(ExitCommandError, "policy rejected", err)
	}
	formatter.VerboseLog("Merging %s and %s under %d field strategies",
		localPath, remotePath, len(policy.Fields()))

	resolver := resolve.NewResolver(policy)
	res := resolver.ResolvePlan(local.Snapshot, remote.Snapshot, local.Clock, remote.Clock)

	out := MergeOutput{
		Source:    res.Source,
		Merged:    res.Resolved,
		Clock:     res.Clock,
		Conflicts: res.Conflicts,
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	return writeMergeText(formatter, out)
}

// buildPolicy assembles the effective policy: built-in or file-based,
// then flag overrides.
func buildPolicy(policyPath, fieldsFlag string) (*resolve.Policy, error) {
	policy := resolve.DefaultPolicy()
	if policyPath != "" {
		loaded, err := config.LoadPolicy(policyPath)
		if err != nil {
			return nil, err
		}
		policy = loaded
	}

	if fieldsFlag != "" {
		overrides, err := config.ParseFieldStrategies(fieldsFlag)
		if err != nil {
			return nil, err
		}
		for field, strategy := range overrides {
			policy.Register(field, strategy)
		}
	}
	return policy, nil
}

func writeMergeText(formatter *OutputFormatter, out MergeOutput) error {
	fmt.Fprintf(formatter.Writer, "source: %s\n", out.Source)
	fmt.Fprintf(formatter.Writer, "clock:  %s\n", out.Clock)

	merged, err := json.MarshalIndent(out.Merged, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "merged:\n%s\n", merged)

	if len(out.Conflicts) == 0 {
		fmt.Fprintln(formatter.Writer, "conflicts: none")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "conflicts (%d):\n", len(out.Conflicts))
	for _, c := range out.Conflicts {
		fmt.Fprintf(formatter.Writer, "  %s: %s (local=%v remote=%v)\n",
			c.Field, c.Strategy, c.Local, c.Remote)
	}
	return nil
}

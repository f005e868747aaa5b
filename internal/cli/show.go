package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantprep/quantprep/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored preparation run",
		Long: `Reassemble and print one run's full report from the provenance
store: group assignments in registration order, materialized observers,
and inserted nodes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite provenance database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rep, err := st.ReadReport(cmd.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("run not found: %s", runID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	rec, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	summary := summarizeReport(rep, true)
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "run %s\n", summary.RunID)
	fmt.Fprintf(w, "graph %s\n", summary.GraphHash)
	fmt.Fprintf(w, "mode: %s\n", modeName(summary.Training))
	fmt.Fprintf(w, "tool: %s\n", rec.ToolVersion)
	fmt.Fprintf(w, "created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "nodes: %d -> %d\n", summary.NodesBefore, summary.NodesAfter)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "groups (%d positions):\n", len(summary.Groups))
	for _, ga := range summary.Groups {
		fmt.Fprintf(w, "  %-32s group %d  observer %s\n", ga.Position, ga.GroupID, ga.ObserverID)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "observers (%d):\n", len(summary.Observers))
	for _, o := range summary.Observers {
		fmt.Fprintf(w, "  group %d  %s %s  %s\n", o.GroupID, o.Kind, describeSpec(o.DType, o.Dynamic), o.ObserverID)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "inserted (%d):\n", len(summary.Inserted))
	for _, in := range summary.Inserted {
		fmt.Fprintf(w, "  %s after %s\n", in.ObserverNode, in.Source)
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantprep/quantprep/internal/compiler"
	"github.com/quantprep/quantprep/internal/ir"
	"github.com/quantprep/quantprep/internal/prepare"
	"github.com/quantprep/quantprep/internal/store"
)

// PrepareOptions holds flags for the prepare command.
type PrepareOptions struct {
	*RootOptions
	Database string
	Training bool
	DumpGraph bool

	// IDs allows overriding the observer ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs prepare.IDGenerator
}

// PrepareSummary is the JSON payload printed after a successful run.
type PrepareSummary struct {
	RunID       string            `json:"run_id"`
	GraphHash   string            `json:"graph_hash"`
	Training    bool              `json:"training"`
	NodesBefore int               `json:"nodes_before"`
	NodesAfter  int               `json:"nodes_after"`
	Groups      []GroupSummary    `json:"groups"`
	Observers   []ObserverSummary `json:"observers"`
	Inserted    []InsertSummary   `json:"inserted"`
	Stored      bool              `json:"stored"`
	Graph       string            `json:"graph,omitempty"`
}

// GroupSummary is one position's group resolution.
type GroupSummary struct {
	Position   string `json:"position"`
	GroupID    int    `json:"group_id"`
	ObserverID string `json:"observer_id"`
}

// ObserverSummary is one materialized observer instance.
type ObserverSummary struct {
	GroupID    int    `json:"group_id"`
	ObserverID string `json:"observer_id"`
	Kind       string `json:"kind"`
	DType      string `json:"dtype,omitempty"`
	Dynamic    bool   `json:"dynamic"`
}

// InsertSummary is one inserted observer node.
type InsertSummary struct {
	ObserverNode string `json:"observer_node"`
	Source       string `json:"source"`
	ObserverID   string `json:"observer_id"`
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PrepareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prepare <graph-file-or-dir>",
		Short: "Run the observer preparation pass over a graph",
		Long: `Compile a CUE graph document, infer observer sharing from its
annotations, insert observer nodes, and print the run report.

With --db the report is also written to the provenance store. Identical
runs (same graph, mode, and tool version) are stored once.

Example:
  quantprep prepare ./graph.cue
  quantprep prepare --db ./provenance.db --training ./graphs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrepare(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite provenance database")
	cmd.Flags().BoolVar(&opts.Training, "training", false, "materialize fake-quant observers for training")
	cmd.Flags().BoolVar(&opts.DumpGraph, "dump", false, "include the mutated graph in the output")

	return cmd
}

func runPrepare(opts *PrepareOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	configureLogging(opts.Verbose, cmd)

	result, err := LoadGraph(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return WrapExitError(ExitCommandError, "failed to load graph", err)
		}
		return WrapExitError(ExitCommandError, "failed to load graph", err)
	}

	if validationErrors := compiler.Validate(result.Graph); len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, nil)
	}

	passOpts := []prepare.Option{prepare.WithTraining(opts.Training)}
	if opts.IDs != nil {
		passOpts = append(passOpts, prepare.WithObserverIDs(opts.IDs))
	}

	rep, err := prepare.Run(result.Graph, passOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "preparation pass failed", err)
	}

	stored := false
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		stored, err = st.WriteRun(cmd.Context(), rep, ir.ToolVersion, time.Now().UTC())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write run", err)
		}
		if !stored {
			formatter.VerboseLog("Run %s already stored", rep.RunID)
		}
	}

	return outputPrepareSummary(formatter, opts, rep, result.Graph, stored)
}

// configureLogging routes structured pass logs to stderr, at debug level
// when verbose.
func configureLogging(verbose bool, cmd *cobra.Command) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func outputPrepareSummary(formatter *OutputFormatter, opts *PrepareOptions, rep *prepare.Report, g *ir.Graph, stored bool) error {
	summary := summarizeReport(rep, stored)
	if opts.DumpGraph {
		summary.Graph = ir.Dump(g)
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "run %s\n", summary.RunID)
	fmt.Fprintf(w, "graph %s\n", summary.GraphHash)
	fmt.Fprintf(w, "mode: %s\n", modeName(summary.Training))
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
	if stored {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "stored")
	}
	if summary.Graph != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, summary.Graph)
	}
	return nil
}

func summarizeReport(rep *prepare.Report, stored bool) *PrepareSummary {
	summary := &PrepareSummary{
		RunID:       rep.RunID,
		GraphHash:   rep.GraphHash,
		Training:    rep.Training,
		NodesBefore: rep.NodesBefore,
		NodesAfter:  rep.NodesAfter,
		Stored:      stored,
	}
	for _, ga := range rep.Groups {
		summary.Groups = append(summary.Groups, GroupSummary{
			Position:   ga.Position.String(),
			GroupID:    ga.GroupID,
			ObserverID: ga.ObserverID,
		})
	}
	for _, o := range rep.Observers {
		summary.Observers = append(summary.Observers, ObserverSummary{
			GroupID:    o.GroupID,
			ObserverID: o.ObserverID,
			Kind:       string(o.Kind),
			DType:      string(o.DType),
			Dynamic:    o.Dynamic,
		})
	}
	for _, in := range rep.Inserted {
		summary.Inserted = append(summary.Inserted, InsertSummary{
			ObserverNode: in.ObserverNode,
			Source:       in.Source,
			ObserverID:   in.ObserverID,
		})
	}
	return summary
}

func modeName(training bool) string {
	if training {
		return "training"
	}
	return "eval"
}

func describeSpec(dtype string, dynamic bool) string {
	if dtype == "" {
		dtype = "unset"
	}
	if dynamic {
		return dtype + " dynamic"
	}
	return dtype + " static"
}

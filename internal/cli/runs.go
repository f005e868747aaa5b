package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantprep/quantprep/internal/queryir"
	"github.com/quantprep/quantprep/internal/querysql"
	"github.com/quantprep/quantprep/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database  string
	GraphHash string
	Training  bool
	Position  string
	Limit     int
}

// RunListEntry is one run in the JSON listing.
type RunListEntry struct {
	RunID       string `json:"run_id"`
	GraphHash   string `json:"graph_hash"`
	Training    bool   `json:"training"`
	ToolVersion string `json:"tool_version"`
	NodesBefore int    `json:"nodes_before"`
	NodesAfter  int    `json:"nodes_after"`
	CreatedAt   string `json:"created_at"`
}

// runColumns is the projection every runs query uses, in scan order.
var runColumns = []string{
	"runs.id", "runs.graph_hash", "runs.training", "runs.tool_version",
	"runs.nodes_before", "runs.nodes_after", "runs.created_at",
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored preparation runs",
		Long: `List runs from the provenance store, newest first.

Filters combine with AND. --position selects runs whose sharing groups
cover a given position ("node:op1" or "edge:op1->cat1").

Example:
  quantprep runs --db ./provenance.db
  quantprep runs --db ./provenance.db --graph-hash abc123 --training
  quantprep runs --db ./provenance.db --position "edge:op1->cat1"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite provenance database (required)")
	cmd.Flags().StringVar(&opts.GraphHash, "graph-hash", "", "only runs over this graph hash")
	cmd.Flags().BoolVar(&opts.Training, "training", false, "only training-mode (or with =false, eval-mode) runs")
	cmd.Flags().StringVar(&opts.Position, "position", "", "only runs whose groups cover this position")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = unlimited)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
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

	query := buildRunsQuery(opts, cmd.Flags().Changed("training"))
	if res := queryir.Validate(query); !res.IsValid {
		// Filters are built from flags, so this is a programming error.
		return NewExitError(ExitCommandError, "internal query error: "+strings.Join(res.Problems, "; "))
	}

	sqlText, params, err := querysql.Compile(query)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile query", err)
	}
	formatter.VerboseLog("query: %s %v", sqlText, params)

	rows, err := st.Query(cmd.Context(), sqlText, params...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query runs", err)
	}
	defer rows.Close()

	var entries []RunListEntry
	for rows.Next() {
		var e RunListEntry
		var training int
		if err := rows.Scan(&e.RunID, &e.GraphHash, &training, &e.ToolVersion,
			&e.NodesBefore, &e.NodesAfter, &e.CreatedAt); err != nil {
			return WrapExitError(ExitCommandError, "failed to scan run", err)
		}
		e.Training = training != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	if formatter.Format == "json" {
		if entries == nil {
			entries = []RunListEntry{}
		}
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no runs")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%s  %s  %-8s  %d -> %d  %s\n",
			e.RunID, e.CreatedAt, modeName(e.Training), e.NodesBefore, e.NodesAfter, e.GraphHash)
	}
	return nil
}

// buildRunsQuery translates the flag set into a query IR value. A
// position filter joins through run_groups; plain filters stay a single
// Select.
func buildRunsQuery(opts *RunsOptions, filterTraining bool) queryir.Query {
	var filters []queryir.Predicate
	if opts.GraphHash != "" {
		filters = append(filters, queryir.Equals{
			Column: "runs.graph_hash",
			Value:  queryir.StringValue(opts.GraphHash),
		})
	}
	if filterTraining {
		filters = append(filters, queryir.Equals{
			Column: "runs.training",
			Value:  queryir.BoolValue(opts.Training),
		})
	}

	sel := queryir.Select{
		From:       "runs",
		Columns:    runColumns,
		OrderBy:    "runs.created_at",
		Descending: true,
		Limit:      opts.Limit,
	}
	if len(filters) > 0 {
		sel.Filter = queryir.And{Predicates: filters}
	}

	if opts.Position == "" {
		return sel
	}
	return queryir.Join{
		Left: sel,
		Right: queryir.Select{
			From: "run_groups",
			Filter: queryir.Equals{
				Column: "run_groups.position",
				Value:  queryir.StringValue(opts.Position),
			},
		},
		On: queryir.ColumnEquals{Left: "runs.id", Right: "run_groups.run_id"},
	}
}

// openExistingStore opens the provenance database, refusing to create a
// fresh one the way store.Open would.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}

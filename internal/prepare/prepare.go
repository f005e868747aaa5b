package prepare

import (
	"fmt"
	"log/slog"

	"github.com/quantprep/quantprep/internal/ir"
)

// Option configures a preparation run.
type Option func(*config)

type config struct {
	training     bool
	maxSpecDepth int
	factory      Factory
	ids          IDGenerator
}

// WithTraining selects training-mode preparation: concrete static specs
// materialize fake-quant observers instead of min/max observers.
func WithTraining(training bool) Option {
	return func(c *config) { c.training = training }
}

// WithMaxSpecDepth overrides the shared-with resolution depth bound.
// Default: DefaultMaxSpecDepth.
func WithMaxSpecDepth(depth int) Option {
	return func(c *config) { c.maxSpecDepth = depth }
}

// WithFactory replaces the observer factory. The default derives
// observer kind from spec and mode (see DefaultFactory).
func WithFactory(f Factory) Option {
	return func(c *config) { c.factory = f }
}

// WithObserverIDs sets the instance ID source for the default factory.
// Use NewFixedGenerator in tests for deterministic output.
// Ignored when WithFactory is also given.
func WithObserverIDs(gen IDGenerator) Option {
	return func(c *config) { c.ids = gen }
}

// Run executes the observer-sharing preparation pass over g, mutating
// it in place, and returns a Report describing what was done.
//
// The pass is single-threaded and synchronous; g must be exclusively
// owned by the caller for the duration. On error the graph must be
// treated as not-yet-prepared - Run provides no rollback.
func Run(g *ir.Graph, opts ...Option) (*Report, error) {
	cfg := &config{
		maxSpecDepth: DefaultMaxSpecDepth,
		ids:          UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.factory == nil {
		cfg.factory = NewDefaultFactory(cfg.ids)
	}

	graphHash, err := ir.GraphHash(g)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	runID, err := ir.RunID(graphHash, cfg.training, ir.ToolVersion)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}

	slog.Info("preparation pass starting",
		"run_id", runID,
		"graph_hash", graphHash,
		"nodes", g.Len(),
		"training", cfg.training,
	)

	nodesBefore := g.Len()

	sm := CollectSpecs(g)
	reg, err := BuildSharing(sm, cfg.maxSpecDepth)
	if err != nil {
		logPassError("sharing inference failed", runID, err)
		return nil, err
	}
	groups, err := AssignGroups(reg)
	if err != nil {
		logPassError("group assignment failed", runID, err)
		return nil, err
	}
	obs, err := Materialize(sm, groups, cfg.factory, cfg.training)
	if err != nil {
		logPassError("observer materialization failed", runID, err)
		return nil, err
	}

	m := &mutator{g: g, obs: obs}
	if err := m.run(); err != nil {
		logPassError("graph mutation failed", runID, err)
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		GraphHash:   graphHash,
		Training:    cfg.training,
		NodesBefore: nodesBefore,
		NodesAfter:  g.Len(),
		Inserted:    m.inserted,
	}
	seenGroups := make(map[int]bool, groups.Count())
	for _, pos := range sm.Positions() {
		gid, _ := groups.ID(pos)
		inst := obs[pos]
		report.Groups = append(report.Groups, GroupAssignment{
			Position:   pos,
			GroupID:    gid,
			ObserverID: inst.ID,
		})
		if !seenGroups[gid] {
			seenGroups[gid] = true
			report.Observers = append(report.Observers, ObserverRecord{
				GroupID:    gid,
				ObserverID: inst.ID,
				Kind:       inst.Kind,
				DType:      inst.DType,
				Dynamic:    inst.Dynamic,
			})
		}
	}

	slog.Info("preparation pass complete",
		"run_id", runID,
		"positions", sm.Len(),
		"groups", groups.Count(),
		"observers_inserted", len(m.inserted),
		"nodes_before", nodesBefore,
		"nodes_after", g.Len(),
	)
	return report, nil
}

// logPassError logs a pass failure with full context before it is
// returned to the caller. Pass errors are never retried: the pass is
// deterministic, so a retry would reproduce the failure.
func logPassError(stage string, runID string, err error) {
	var pe *PassError
	if asPassError(err, &pe) {
		slog.Error(stage,
			"run_id", runID,
			"code", string(pe.Code),
			"error", err,
			"position", pe.Position,
			"node", pe.Node,
		)
		return
	}
	slog.Error(stage, "run_id", runID, "error", err)
}

func asPassError(err error, target **PassError) bool {
	pe, ok := err.(*PassError)
	if ok {
		*target = pe
	}
	return ok
}

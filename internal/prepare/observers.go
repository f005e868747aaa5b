package prepare

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quantprep/quantprep/internal/ir"
)

// IDGenerator generates unique observer instance IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 observer IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so instance
// IDs sort by creation time, which is helpful when reading provenance
// records.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for testing.
//
// This enables deterministic pass output and golden graph comparison:
// tests provide a known sequence of IDs and assert exact dumps.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("obs-1", "obs-2")
//	gen.Generate() // "obs-1"
//	gen.Generate() // "obs-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all ids have been consumed - fail fast on test
// misconfiguration (the pass created more observers than expected).
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Factory creates observer instances from specs. The existing map holds
// every instance bound so far, keyed by position - shared-with specs
// resolve against it instead of creating anything new.
type Factory interface {
	Create(spec ir.Spec, existing map[ir.Position]*ir.Observer, training bool) (*ir.Observer, error)
}

// DefaultFactory derives the observer kind from the spec and mode:
// dynamic specs get a placeholder observer, training mode gets a fake
// quantizer, everything else a min/max range observer.
type DefaultFactory struct {
	IDs IDGenerator
}

// NewDefaultFactory builds a factory with the given ID source.
func NewDefaultFactory(ids IDGenerator) *DefaultFactory {
	return &DefaultFactory{IDs: ids}
}

// Create implements Factory.
func (f *DefaultFactory) Create(spec ir.Spec, existing map[ir.Position]*ir.Observer, training bool) (*ir.Observer, error) {
	switch s := spec.(type) {
	case ir.SharedWith:
		// The referenced position must already carry an instance: its
		// group was materialized earlier in registration order.
		obs, ok := existing[s.Target]
		if !ok {
			return nil, &PassError{
				Code:     ErrCodeKeyNotFound,
				Message:  "shared-with target has no bound observer instance yet",
				Position: s.Target.String(),
			}
		}
		return obs, nil

	case ir.QuantSpec:
		kind := ir.KindMinMax
		switch {
		case s.Dynamic():
			kind = ir.KindPlaceholder
		case training:
			kind = ir.KindFakeQuant
		}
		return &ir.Observer{
			ID:      f.IDs.Generate(),
			Kind:    kind,
			DType:   s.DType,
			Dynamic: s.Dynamic(),
		}, nil

	default:
		return nil, &PassError{
			Code:    ErrCodeKeyNotFound,
			Message: "cannot create an observer from a nil spec",
		}
	}
}

// Materialize binds one observer instance per group.
//
// Positions are visited in registration order. The first position seen
// for a group triggers creation using that position's OWN local spec -
// not the group's root spec. First-seen-wins is deliberate and
// preserved exactly: specs within a group may differ in fields beyond
// dtype/dynamic-ness, and which one configures the instance depends on
// processing order.
func Materialize(sm *SpecMap, groups *Groups, f Factory, training bool) (map[ir.Position]*ir.Observer, error) {
	byPos := make(map[ir.Position]*ir.Observer, sm.Len())
	byGroup := make(map[int]*ir.Observer, groups.Count())

	for _, pos := range sm.Positions() {
		gid, ok := groups.ID(pos)
		if !ok {
			return nil, newKeyNotFoundError(pos)
		}
		if _, exists := byGroup[gid]; !exists {
			spec, _ := sm.Get(pos)
			obs, err := f.Create(spec, byPos, training)
			if err != nil {
				return nil, err
			}
			byGroup[gid] = obs
		}
		byPos[pos] = byGroup[gid]
	}
	return byPos, nil
}

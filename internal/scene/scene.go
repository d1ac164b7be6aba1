// Package scene composes the allocator, hash index, allocation builder,
// resolver, visible-set manager and fusion kernel into the single
// per-frame Frame() operation, the way internal/api/server.go composed
// its collaborators behind one Server type and cmd/collab_server/main.go
// wired Hub + SessionManager.
package scene

import (
	"sync/atomic"
	"time"

	"voxfusion/internal/executor"
	"voxfusion/internal/fusion"
	"voxfusion/internal/fusionerrors"
	"voxfusion/internal/hashindex"
	"voxfusion/internal/swapqueue"
	"voxfusion/internal/voxblock"
)

// Config sizes a Scene's fixed-capacity structures at construction; the
// core performs no runtime allocation after this.
type Config struct {
	NBlocks    int
	BlockDim   int
	NBuckets   int32
	EPerBucket int32
	NExcess    int32
	Levels     int // 1 = flat, >=2 = hierarchical

	Fusion fusion.Params

	SwapQueue swapqueue.Queue // optional; nil disables swap-queue pushes
}

func (cfg Config) validate() *fusionerrors.FusionError {
	fail := func(msg string) *fusionerrors.FusionError {
		return fusionerrors.New(fusionerrors.ErrConstructionFailed, fusionerrors.SeverityCritical, msg)
	}
	switch {
	case cfg.NBlocks <= 0:
		return fail("NBlocks must be positive")
	case cfg.BlockDim <= 0:
		return fail("BlockDim must be positive")
	case cfg.NBuckets <= 0:
		return fail("NBuckets must be positive")
	case cfg.EPerBucket < 1:
		return fail("EPerBucket must be at least 1")
	case cfg.NExcess < 0:
		return fail("NExcess must not be negative")
	case cfg.Levels < 1:
		return fail("Levels must be at least 1")
	case cfg.Fusion.Mu <= 0:
		return fail("Mu must be positive")
	}
	return nil
}

// Scene owns the fixed-capacity allocator and hash table(s) for a
// reconstruction - flat when Levels==1, hierarchical otherwise - and
// exposes Frame as the one per-frame operation a caller drives.
type Scene struct {
	Allocator *voxblock.Allocator
	Table     *hashindex.HashTable // the flat table, or level 0 (finest) when hierarchical; see LevelTables
	Hierarchy *hashindex.Hierarchy // nil unless cfg.Levels >= 2
	Exec      executor.Executor

	params      fusion.Params
	swapQueue   swapqueue.Queue
	swapBreaker *fusionerrors.CircuitBreaker

	allocFailures  int64
	excessFailures int64
	pixelsRejected int64
}

// New builds a Scene sized per cfg, using exec to dispatch every pass.
// A nil exec defaults to executor.SerialExecutor{}. Returns a
// SeverityCritical *fusionerrors.FusionError on an invalid configuration.
func New(cfg Config, exec executor.Executor) (*Scene, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = executor.SerialExecutor{}
	}

	s := &Scene{
		Allocator:   voxblock.NewAllocator(cfg.NBlocks, cfg.BlockDim),
		Exec:        exec,
		params:      cfg.Fusion,
		swapQueue:   cfg.SwapQueue,
		swapBreaker: fusionerrors.NewCircuitBreaker(3, 10*time.Second),
	}

	if cfg.Levels <= 1 {
		s.Table = hashindex.NewHashTable(cfg.NBuckets, cfg.EPerBucket, cfg.NExcess)
	} else {
		levels := make([]*hashindex.HashTable, cfg.Levels)
		for l := range levels {
			levels[l] = hashindex.NewHashTable(cfg.NBuckets, cfg.EPerBucket, cfg.NExcess)
		}
		s.Hierarchy = hashindex.NewHierarchy(levels...)
		s.Table = levels[0] // level 0 is finest; kept as a representative table for callers like persist's header
	}

	return s, nil
}

// LevelTables returns every hash table Frame operates on: the single
// flat table when cfg.Levels==1, or every hierarchy level (index 0
// finest) otherwise. persist and telemetry drive their per-level work
// off this same slice so "which tables exist" has one definition.
func (s *Scene) LevelTables() []*hashindex.HashTable {
	if s.Hierarchy == nil {
		return []*hashindex.HashTable{s.Table}
	}
	tables := make([]*hashindex.HashTable, s.Hierarchy.NumLevels())
	for l := range tables {
		tables[l] = s.Hierarchy.Level(l)
	}
	return tables
}

// FrameStats aggregates per-pass counters for one Frame() call, the
// quantities spec.md 4.G/§7 expect to be exposed to callers.
type FrameStats struct {
	Build   fusion.BuildStats
	Resolve hashindex.ResolveStats
	Fuse    fusion.FuseStats
	Visible fusion.VisibleSet
}

// Frame runs one D -> E -> G -> F pass: marches the depth image to stage
// allocation/visibility intents, resolves them against the block pool,
// rebuilds the visible set, then fuses every visible block's voxels.
// When hierarchical, every level is swept independently for E/G/F - the
// march (D) stages each sampled coordinate at exactly one level, so
// each level's own resolve/visible/fuse pass only ever touches the
// entries that landed on it.
func (s *Scene) Frame(f fusion.Frame) FrameStats {
	tables := s.LevelTables()
	for _, t := range tables {
		t.ResetVisible()
	}

	var build fusion.BuildStats
	if s.Hierarchy != nil {
		build = fusion.BuildAllocationVisibilityHierarchical(s.Exec, f, s.params, s.Hierarchy)
	} else {
		build = fusion.BuildAllocationVisibility(s.Exec, f, s.params, s.Table)
	}

	var resolve hashindex.ResolveStats
	var visible fusion.VisibleSet
	var fuseStats fusion.FuseStats
	for _, t := range tables {
		r := t.Resolve(s.Allocator)
		resolve.Allocated += r.Allocated
		resolve.AllocFailures += r.AllocFailures
		resolve.ExcessFailures += r.ExcessFailures

		v := fusion.BuildVisibleSet(t)
		visible.VisibleEntryIDs = append(visible.VisibleEntryIDs, v.VisibleEntryIDs...)
		visible.NeedsSwapIn = append(visible.NeedsSwapIn, v.NeedsSwapIn...)

		fs := fusion.FuseFrame(s.Exec, t, s.Allocator, s.params, v.VisibleEntryIDs, f)
		fuseStats.VoxelsUpdated += fs.VoxelsUpdated
	}

	atomic.AddInt64(&s.pixelsRejected, build.PixelsRejected)
	atomic.AddInt64(&s.allocFailures, int64(resolve.AllocFailures))
	atomic.AddInt64(&s.excessFailures, int64(resolve.ExcessFailures))

	if s.swapQueue != nil && len(visible.NeedsSwapIn) > 0 {
		_ = s.swapBreaker.Call(func() error {
			return s.swapQueue.PushSwapIn(visible.NeedsSwapIn)
		})
	}

	return FrameStats{Build: build, Resolve: resolve, Fuse: fuseStats, Visible: visible}
}

// Counters is a snapshot of the cumulative error counters spec.md §7
// requires: allocFailures, excessFailures, pixelsRejected.
type Counters struct {
	AllocFailures  int64
	ExcessFailures int64
	PixelsRejected int64
}

// Params returns the fusion tunables this scene was constructed with.
func (s *Scene) Params() fusion.Params { return s.params }

// Counters returns the cumulative counters across every Frame() call so far.
func (s *Scene) Counters() Counters {
	return Counters{
		AllocFailures:  atomic.LoadInt64(&s.allocFailures),
		ExcessFailures: atomic.LoadInt64(&s.excessFailures),
		PixelsRejected: atomic.LoadInt64(&s.pixelsRejected),
	}
}

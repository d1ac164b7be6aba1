package scene

import (
	"testing"

	"voxfusion/internal/fusion"
	"voxfusion/pkg/voxtypes"
)

func testConfig() Config {
	return Config{
		NBlocks:    64,
		BlockDim:   8,
		NBuckets:   64,
		EPerBucket: 2,
		NExcess:    32,
		Levels:     1,
		Fusion: fusion.Params{
			Mu:        0.04,
			VoxelSize: 0.005,
			BlockDim:  8,
			MaxW:      100,
			ZMin:      0,
			ZMax:      100,
		},
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.EPerBucket = 0
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected construction to fail with EPerBucket=0")
	}
}

func TestSceneFrameEndToEnd(t *testing.T) {
	s, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	frame := fusion.Frame{
		Depth:     fusion.DepthImage{W: 1, H: 1, Depth: []float64{1.0}},
		PoseDepth: voxtypes.Identity(),
		ProjDepth: voxtypes.ProjParams{FX: 1, FY: 1, CX: 0, CY: 0},
	}

	stats := s.Frame(frame)
	if stats.Build.PixelsRejected != 0 {
		t.Fatalf("expected no rejected pixels, got %+v", stats.Build)
	}
	if stats.Resolve.Allocated == 0 {
		t.Fatal("expected at least one block allocated")
	}
	if len(stats.Visible.VisibleEntryIDs) == 0 {
		t.Fatal("expected at least one visible entry after the frame")
	}

	counters := s.Counters()
	if counters.AllocFailures != 0 || counters.ExcessFailures != 0 {
		t.Fatalf("did not expect failures on first frame: %+v", counters)
	}
}

func TestHierarchicalSceneBuildsWithoutError(t *testing.T) {
	cfg := testConfig()
	cfg.Levels = 2
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	if s.Hierarchy == nil {
		t.Fatal("expected a hierarchy to be built for Levels=2")
	}
	if s.Hierarchy.NumLevels() != 2 {
		t.Fatalf("expected 2 levels, got %d", s.Hierarchy.NumLevels())
	}

	// 3x3 image with the principal point on the center pixel, so voxels
	// near the optical axis project inside the [1, W-2] guard band.
	frame := fusion.Frame{
		Depth:     fusion.DepthImage{W: 3, H: 3, Depth: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}},
		PoseDepth: voxtypes.Identity(),
		ProjDepth: voxtypes.ProjParams{FX: 1, FY: 1, CX: 1, CY: 1},
	}
	stats := s.Frame(frame)
	if stats.Build.PixelsRejected != 0 {
		t.Fatalf("expected no rejected pixels, got %+v", stats.Build)
	}
	if stats.Resolve.Allocated == 0 {
		t.Fatal("expected the hierarchical march to allocate at least one block")
	}
	if len(stats.Visible.VisibleEntryIDs) == 0 {
		t.Fatal("expected at least one visible entry after the hierarchical frame")
	}
	if stats.Fuse.VoxelsUpdated == 0 {
		t.Fatal("expected at least one voxel fused after the hierarchical frame")
	}
}

package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voxfusion/internal/executor"
	"voxfusion/internal/fusion"
	"voxfusion/internal/scene"
	"voxfusion/pkg/voxtypes"
)

func buildScene(t *testing.T) *scene.Scene {
	t.Helper()
	cfg := scene.Config{
		NBlocks:    8,
		BlockDim:   4,
		NBuckets:   16,
		EPerBucket: 1,
		NExcess:    8,
		Levels:     1,
		Fusion:     fusion.Params{Mu: 0.05, VoxelSize: 0.01, BlockDim: 4, MaxW: 50, ZMin: 0, ZMax: 10},
	}
	s, err := scene.New(cfg, executor.SerialExecutor{})
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	frame := fusion.Frame{
		Depth:     fusion.DepthImage{W: 1, H: 1, Depth: []float64{1.0}},
		PoseDepth: voxtypes.Identity(),
		ProjDepth: voxtypes.ProjParams{FX: 1, FY: 1, CX: 0, CY: 0},
	}
	s.Frame(frame)
	return s
}

func TestVarsEndpointReportsCounters(t *testing.T) {
	s := buildScene(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp varsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestVoxelsEndpointReportsOccupancy(t *testing.T) {
	s := buildScene(t)
	router := NewRouter(s)

	req := httptest.NewRequest(http.MethodGet, "/debug/voxels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp voxelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Levels) != 1 {
		t.Fatalf("expected 1 level, got %d", len(resp.Levels))
	}
	if resp.Levels[0].Resident == 0 {
		t.Fatalf("expected at least one resident entry after a frame, got 0")
	}
}

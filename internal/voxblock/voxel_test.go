package voxblock

import "testing"

func TestSDFRoundTrip(t *testing.T) {
	for _, f := range []float64{-1, -0.5, 0, 0.275, 0.5, 1} {
		fixed := SDFValueToFixed(f)
		back := SDFFixedToFloat(fixed)
		if diff := back - f; diff > 1.0/SDFMax || diff < -1.0/SDFMax {
			t.Errorf("round trip of %v produced %v (diff %v exceeds 1 LSB)", f, back, diff)
		}
	}
}

func TestSDFClamps(t *testing.T) {
	if SDFValueToFixed(5.0) != SDFMax {
		t.Error("value above 1 should clamp to SDFMax")
	}
	if SDFValueToFixed(-5.0) != -SDFMax {
		t.Error("value below -1 should clamp to -SDFMax")
	}
}

func TestWeightedFusion(t *testing.T) {
	// S4 - weighted fusion.
	v := Voxel{SDF: SDFValueToFixed(0.2), WDepth: 3}

	got := v.FuseDepth(0.5, 100)
	want := (3*0.2 + 1*0.5) / 4.0

	if diff := got - want; diff > 1.0/SDFMax || diff < -1.0/SDFMax {
		t.Errorf("expected sdf ~%v, got %v", want, got)
	}
	if v.WDepth != 4 {
		t.Errorf("expected w_depth=4, got %d", v.WDepth)
	}
}

func TestWeightSaturation(t *testing.T) {
	v := Voxel{}
	maxW := uint8(10)

	for i := 0; i < 50; i++ {
		v.FuseDepth(0.3, maxW)
	}

	if v.WDepth != maxW {
		t.Fatalf("expected w_depth to saturate at %d, got %d", maxW, v.WDepth)
	}
	got := SDFFixedToFloat(v.SDF)
	if diff := got - 0.3; diff > 1.0/SDFMax || diff < -1.0/SDFMax {
		t.Errorf("expected sdf to converge to 0.3, got %v", got)
	}
}

func TestColorFusion(t *testing.T) {
	v := Voxel{}
	v.FuseColor(1.0, 0.0, 0.5, 100)

	if v.WColor != 1 {
		t.Fatalf("expected w_color=1, got %d", v.WColor)
	}
	if v.Color[0] != 255 {
		t.Errorf("expected red channel 255, got %d", v.Color[0])
	}
	if v.Color[1] != 0 {
		t.Errorf("expected green channel 0, got %d", v.Color[1])
	}
}

func TestDefaultVoxelIsUninitialized(t *testing.T) {
	v := DefaultVoxel()
	if !v.IsUninitialized() {
		t.Error("default voxel should be uninitialized")
	}
	if v.SDF != SDFMax {
		t.Errorf("default voxel sdf should encode +1, got %d", v.SDF)
	}
}

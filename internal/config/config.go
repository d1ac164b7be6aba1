// Package config loads VoxelConfig in precedence order: built-in
// defaults, then a YAML file, then VOXFUSION_* environment variables,
// then command-line flags. Grounded on internal/api/server.go's
// os.Getenv lookups and every cmd/*/main.go's flag.Parse() style, with
// the YAML layer added per the retrieval pack's inference-sim repo.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"voxfusion/internal/fusionerrors"
)

// VoxelConfig is the full set of construction tunables for a scene.Scene.
type VoxelConfig struct {
	NBlocks      int     `yaml:"n_blocks"`
	NBuckets     int32   `yaml:"n_buckets"`
	EPerBucket   int32   `yaml:"e_per_bucket"`
	NExcess      int32   `yaml:"n_excess"`
	BlockDim     int     `yaml:"block_dim"`
	Levels       int     `yaml:"levels"`
	Mu           float64 `yaml:"mu"`
	MaxW         uint8   `yaml:"max_w"`
	ZMin         float64 `yaml:"z_min"`
	ZMax         float64 `yaml:"z_max"`
	ColorEnabled bool    `yaml:"color_enabled"`
}

// Defaults returns the built-in baseline configuration, the first layer
// in the precedence chain.
func Defaults() VoxelConfig {
	return VoxelConfig{
		NBlocks:      65536,
		NBuckets:     100000,
		EPerBucket:   1,
		NExcess:      20000,
		BlockDim:     8,
		Levels:       1,
		Mu:           0.04,
		MaxW:         100,
		ZMin:         0.2,
		ZMax:         4.0,
		ColorEnabled: true,
	}
}

// Load builds a VoxelConfig from defaults, optionally overridden by a
// YAML file at yamlPath (skipped if the path is empty or the file does
// not exist; any other read or parse error is returned), then
// VOXFUSION_* environment variables, then flags parsed from args. It
// validates the result and returns a *fusionerrors.FusionError with
// ErrConstructionFailed on an invalid combination.
func Load(yamlPath string, args []string) (VoxelConfig, error) {
	cfg := Defaults()

	if yamlPath != "" {
		if err := applyYAML(&cfg, yamlPath); err != nil {
			return VoxelConfig{}, err
		}
	}

	applyEnv(&cfg)

	if err := applyFlags(&cfg, args); err != nil {
		return VoxelConfig{}, err
	}

	if err := validate(cfg); err != nil {
		return VoxelConfig{}, err
	}
	return cfg, nil
}

func applyYAML(cfg *VoxelConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fusionerrors.Wrap(fusionerrors.ErrConstructionFailed, fusionerrors.SeverityCritical,
			"failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fusionerrors.Wrap(fusionerrors.ErrConstructionFailed, fusionerrors.SeverityCritical,
			"failed to parse config YAML", err)
	}
	return nil
}

func applyEnv(cfg *VoxelConfig) {
	envInt(&cfg.NBlocks, "VOXFUSION_N_BLOCKS")
	envInt32(&cfg.NBuckets, "VOXFUSION_N_BUCKETS")
	envInt32(&cfg.EPerBucket, "VOXFUSION_E_PER_BUCKET")
	envInt32(&cfg.NExcess, "VOXFUSION_N_EXCESS")
	envInt(&cfg.BlockDim, "VOXFUSION_BLOCK_DIM")
	envInt(&cfg.Levels, "VOXFUSION_LEVELS")
	envFloat(&cfg.Mu, "VOXFUSION_MU")
	envFloat(&cfg.ZMin, "VOXFUSION_Z_MIN")
	envFloat(&cfg.ZMax, "VOXFUSION_Z_MAX")
	if v, ok := os.LookupEnv("VOXFUSION_MAX_W"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 255 {
			cfg.MaxW = uint8(n)
		}
	}
	if v, ok := os.LookupEnv("VOXFUSION_COLOR_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ColorEnabled = b
		}
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt32(dst *int32, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func applyFlags(cfg *VoxelConfig, args []string) error {
	fs := flag.NewFlagSet("voxfusion", flag.ContinueOnError)
	nBlocks := fs.Int("n-blocks", cfg.NBlocks, "voxel block pool capacity")
	nBuckets := fs.Int("n-buckets", int(cfg.NBuckets), "hash table bucket count")
	ePerBucket := fs.Int("e-per-bucket", int(cfg.EPerBucket), "ordered slots per bucket")
	nExcess := fs.Int("n-excess", int(cfg.NExcess), "excess-chain capacity")
	blockDim := fs.Int("block-dim", cfg.BlockDim, "voxels per block edge")
	levels := fs.Int("levels", cfg.Levels, "1 for flat, >=2 for hierarchical")
	mu := fs.Float64("mu", cfg.Mu, "truncation band half-width")
	maxW := fs.Int("max-w", int(cfg.MaxW), "saturation weight")
	zMin := fs.Float64("z-min", cfg.ZMin, "frustum near bound")
	zMax := fs.Float64("z-max", cfg.ZMax, "frustum far bound")
	colorEnabled := fs.Bool("color", cfg.ColorEnabled, "enable color fusion")

	if err := fs.Parse(args); err != nil {
		return fusionerrors.Wrap(fusionerrors.ErrConstructionFailed, fusionerrors.SeverityCritical,
			"failed to parse flags", err)
	}

	cfg.NBlocks = *nBlocks
	cfg.NBuckets = int32(*nBuckets)
	cfg.EPerBucket = int32(*ePerBucket)
	cfg.NExcess = int32(*nExcess)
	cfg.BlockDim = *blockDim
	cfg.Levels = *levels
	cfg.Mu = *mu
	cfg.MaxW = uint8(*maxW)
	cfg.ZMin = *zMin
	cfg.ZMax = *zMax
	cfg.ColorEnabled = *colorEnabled
	return nil
}

func validate(cfg VoxelConfig) error {
	fail := func(msg string) error {
		return fusionerrors.New(fusionerrors.ErrConstructionFailed, fusionerrors.SeverityCritical, msg)
	}
	switch {
	case cfg.NBlocks <= 0:
		return fail("n_blocks must be positive")
	case cfg.NBuckets <= 0:
		return fail("n_buckets must be positive")
	case cfg.EPerBucket < 1:
		return fail(fmt.Sprintf("e_per_bucket must be at least 1, got %d", cfg.EPerBucket))
	case cfg.NExcess < 0:
		return fail("n_excess must not be negative")
	case cfg.BlockDim <= 0:
		return fail("block_dim must be positive")
	case cfg.Levels < 1:
		return fail("levels must be at least 1")
	case cfg.Mu <= 0:
		return fail("mu must be positive")
	case cfg.ZMax <= cfg.ZMin:
		return fail("z_max must exceed z_min")
	}
	return nil
}

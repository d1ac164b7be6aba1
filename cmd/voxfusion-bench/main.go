// voxfusion-bench drives a synthetic camera path through a Scene and
// reports per-frame timing, allocation counters and memory footprint.
// Adapted from cmd/full_pipeline_benchmark/main.go's staged frame loop
// and cmd/memory_benchmark/main.go's section-by-section report style.
package main

import (
	"flag"
	"fmt"
	"math"
	"runtime"
	"time"

	"voxfusion/internal/executor"
	"voxfusion/internal/fusion"
	"voxfusion/internal/scene"
	"voxfusion/pkg/voxtypes"
)

func main() {
	frames := flag.Int("frames", 100, "number of synthetic frames to fuse")
	width := flag.Int("width", 320, "synthetic depth image width")
	height := flag.Int("height", 240, "synthetic depth image height")
	workers := flag.Int("workers", 0, "goroutine pool size (0 = runtime.NumCPU())")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("voxfusion-bench - sparse TSDF fusion core")
	fmt.Println("========================================")
	fmt.Println()

	cfg := scene.Config{
		NBlocks:    65536,
		BlockDim:   8,
		NBuckets:   100000,
		EPerBucket: 1,
		NExcess:    20000,
		Levels:     1,
		Fusion: fusion.Params{
			Mu:        0.04,
			VoxelSize: 0.005,
			BlockDim:  8,
			MaxW:      100,
			ZMin:      0.2,
			ZMax:      4.0,
		},
	}

	exec := executor.Executor(executor.NewPoolExecutor(*workers))
	s, err := scene.New(cfg, exec)
	if err != nil {
		fmt.Printf("construction failed: %v\n", err)
		return
	}

	fmt.Printf("Synthesizing %d frames of %dx%d depth...\n", *frames, *width, *height)
	fmt.Println("------------------------------------------")

	var totalFrameTime time.Duration
	var totalVoxels, totalAlloc, totalRejected int64

	for i := 0; i < *frames; i++ {
		depth := syntheticPlane(*width, *height, 1.5+0.1*math.Sin(float64(i)/10))
		f := fusion.Frame{
			Depth:     fusion.DepthImage{W: *width, H: *height, Depth: depth},
			PoseDepth: voxtypes.Identity(),
			ProjDepth: voxtypes.ProjParams{FX: float64(*width), FY: float64(*width), CX: float64(*width) / 2, CY: float64(*height) / 2},
		}

		start := time.Now()
		stats := s.Frame(f)
		elapsed := time.Since(start)

		totalFrameTime += elapsed
		totalVoxels += stats.Fuse.VoxelsUpdated
		totalAlloc += int64(stats.Resolve.Allocated)
		totalRejected += stats.Build.PixelsRejected

		if (i+1)%10 == 0 {
			fps := 1.0 / elapsed.Seconds()
			fmt.Printf("Frame %3d: %.2fms (%.1f fps) | voxels updated: %d | blocks allocated: %d\n",
				i+1, elapsed.Seconds()*1000, fps, stats.Fuse.VoxelsUpdated, stats.Resolve.Allocated)
		}
	}

	fmt.Println()
	fmt.Println("Summary")
	fmt.Println("-------")
	avg := totalFrameTime / time.Duration(*frames)
	fmt.Printf("Average frame time: %.2fms (%.1f fps)\n", avg.Seconds()*1000, 1.0/avg.Seconds())
	fmt.Printf("Total voxels updated: %d\n", totalVoxels)
	fmt.Printf("Total blocks allocated: %d\n", totalAlloc)
	fmt.Printf("Total pixels rejected: %d\n", totalRejected)

	counters := s.Counters()
	fmt.Printf("Cumulative allocFailures=%d excessFailures=%d pixelsRejected=%d\n",
		counters.AllocFailures, counters.ExcessFailures, counters.PixelsRejected)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Printf("Process heap: %.2f MB\n", float64(mem.HeapAlloc)/(1024*1024))
}

// syntheticPlane generates a depth image of a fronto-parallel plane at
// the given distance, standing in for a real depth sensor frame.
func syntheticPlane(w, h int, distance float64) []float64 {
	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = distance
	}
	return depth
}

// voxfusiond runs the sparse TSDF fusion core as a long-lived service:
// it accepts depth/color frames over HTTP, fuses each into the scene,
// and streams the resulting visible-block set to connected viewers over
// WebSocket. Adapted from cmd/collab_server/main.go's flag parsing,
// mux.Router construction and graceful-shutdown signal handling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"voxfusion/internal/config"
	"voxfusion/internal/executor"
	"voxfusion/internal/fusion"
	"voxfusion/internal/livefeed"
	"voxfusion/internal/scene"
	"voxfusion/internal/swapqueue"
	"voxfusion/internal/telemetry"
	"voxfusion/pkg/voxtypes"
)

func main() {
	port := flag.Int("port", 8090, "HTTP server port")
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	redisAddr := flag.String("redis", "", "Redis address for the swap queue (empty disables it)")
	redisPassword := flag.String("redis-password", "", "Redis password")
	redisDB := flag.Int("redis-db", 0, "Redis database number")
	workers := flag.Int("workers", 0, "goroutine pool size (0 = runtime.NumCPU())")
	flag.Parse()

	log.Println("==============================================")
	log.Println("  voxfusiond - sparse TSDF fusion core")
	log.Println("==============================================")

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("[VOXFUSIOND] invalid configuration: %v", err)
	}
	log.Printf("[VOXFUSIOND] n_blocks=%d n_buckets=%d levels=%d mu=%.4f",
		cfg.NBlocks, cfg.NBuckets, cfg.Levels, cfg.Mu)

	var queue swapqueue.Queue
	if *redisAddr != "" {
		rq, err := swapqueue.NewRedisQueue(context.Background(), *redisAddr, *redisPassword, *redisDB)
		if err != nil {
			log.Fatalf("[VOXFUSIOND] failed to connect to Redis swap queue: %v", err)
		}
		defer rq.Close()
		queue = rq
		log.Printf("[VOXFUSIOND] swap queue: redis %s", *redisAddr)
	} else {
		queue = swapqueue.NewMemoryQueue()
		log.Println("[VOXFUSIOND] swap queue: in-memory")
	}

	sceneCfg := scene.Config{
		NBlocks:    cfg.NBlocks,
		BlockDim:   cfg.BlockDim,
		NBuckets:   cfg.NBuckets,
		EPerBucket: cfg.EPerBucket,
		NExcess:    cfg.NExcess,
		Levels:     cfg.Levels,
		Fusion: fusion.Params{
			Mu:        cfg.Mu,
			VoxelSize: cfg.Mu / 8, // truncation band spans a handful of voxels at the default block size
			BlockDim:  cfg.BlockDim,
			MaxW:      cfg.MaxW,
			ZMin:      cfg.ZMin,
			ZMax:      cfg.ZMax,
		},
		SwapQueue: queue,
	}

	exec := executor.Executor(executor.SerialExecutor{})
	if *workers != 0 || cfg.BlockDim > 1 {
		exec = executor.NewPoolExecutor(*workers)
	}

	s, err := scene.New(sceneCfg, exec)
	if err != nil {
		log.Fatalf("[VOXFUSIOND] scene construction failed: %v", err)
	}

	hub := livefeed.NewHub()
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	var viewerSeq atomic.Int64
	nextID := func() string {
		return fmt.Sprintf("viewer-%d", viewerSeq.Add(1))
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.HandleFunc("/frame", handleFrame(s, hub)).Methods("POST")
	livefeed.RegisterRoutes(router, hub, nextID)

	telemetryRouter := telemetry.NewRouter(s)
	router.PathPrefix("/debug/").Handler(telemetryRouter)

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[VOXFUSIOND] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[VOXFUSIOND] server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("[VOXFUSIOND] shutting down...")
	close(hubStop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[VOXFUSIOND] shutdown error: %v", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","timestamp":%d}`, time.Now().Unix())
}

// frameRequest is the wire shape accepted by POST /frame: a depth image
// (and optional color image), camera poses, and projection parameters
// for the depth and color sensors. Camera tracking and acquisition are
// the calling collaborator's responsibility; this endpoint only fuses
// what it is handed.
type frameRequest struct {
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Depth     []float64   `json:"depth"`
	Color     []uint8     `json:"color,omitempty"`
	PoseDepth [16]float64 `json:"pose_depth"`
	PoseColor [16]float64 `json:"pose_color,omitempty"`
	ProjDepth [4]float64  `json:"proj_depth"` // fx, fy, cx, cy
	ProjColor [4]float64  `json:"proj_color,omitempty"`
	HasColor  bool        `json:"has_color"`
}

func handleFrame(s *scene.Scene, hub *livefeed.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req frameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("malformed frame payload: %v", err), http.StatusBadRequest)
			return
		}
		if req.Width*req.Height != len(req.Depth) {
			http.Error(w, "depth length does not match width*height", http.StatusBadRequest)
			return
		}

		frame := fusion.Frame{
			Depth:     fusion.DepthImage{W: req.Width, H: req.Height, Depth: req.Depth},
			PoseDepth: voxtypes.Mat4(req.PoseDepth),
			ProjDepth: voxtypes.ProjParams{FX: req.ProjDepth[0], FY: req.ProjDepth[1], CX: req.ProjDepth[2], CY: req.ProjDepth[3]},
			HasColor:  req.HasColor,
		}
		if req.HasColor && len(req.Color) == req.Width*req.Height*3 {
			frame.Color = fusion.ColorImage{W: req.Width, H: req.Height, RGB: req.Color}
			frame.PoseColor = voxtypes.Mat4(req.PoseColor)
			frame.ProjColor = voxtypes.ProjParams{FX: req.ProjColor[0], FY: req.ProjColor[1], CX: req.ProjColor[2], CY: req.ProjColor[3]}
		}

		stats := s.Frame(frame)

		hub.Broadcast(livefeed.Frame{
			VisibleEntryIDs: stats.Visible.VisibleEntryIDs,
			NeedsSwapIn:     stats.Visible.NeedsSwapIn,
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

// Package telemetry exposes a scene.Scene's runtime counters and
// occupancy over HTTP. Grounded on profiling/frame_profiler.go's
// stage-timing accumulator style (plain counters, a Report/snapshot
// method) and cmd/collab_server/main.go's mux.Router + JSON handler
// construction.
package telemetry

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"voxfusion/internal/hashindex"
	"voxfusion/internal/scene"
)

// NewRouter builds a router exposing s's counters and per-level
// occupancy for monitoring and debugging.
func NewRouter(s *scene.Scene) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/debug/vars", handleVars(s)).Methods("GET")
	r.HandleFunc("/debug/voxels", handleVoxels(s)).Methods("GET")
	return r
}

// varsResponse mirrors scene.Counters, serialized for /debug/vars.
type varsResponse struct {
	AllocFailures  int64 `json:"alloc_failures"`
	ExcessFailures int64 `json:"excess_failures"`
	PixelsRejected int64 `json:"pixels_rejected"`
}

func handleVars(s *scene.Scene) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.Counters()
		resp := varsResponse{
			AllocFailures:  c.AllocFailures,
			ExcessFailures: c.ExcessFailures,
			PixelsRejected: c.PixelsRejected,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// levelOccupancy reports, for one hash table level, how many slots the
// last frame marked visible-resident and visible-evicted, and the
// level's total slot count.
type levelOccupancy struct {
	Level     int   `json:"level"`
	Resident  int64 `json:"resident"`
	Evicted   int64 `json:"evicted"`
	Capacity  int32 `json:"capacity"`
}

type voxelsResponse struct {
	Levels []levelOccupancy `json:"levels"`
}

func handleVoxels(s *scene.Scene) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := voxelsResponse{Levels: occupancy(s)}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func occupancy(s *scene.Scene) []levelOccupancy {
	tables := s.LevelTables()
	out := make([]levelOccupancy, len(tables))
	for l, t := range tables {
		out[l] = occupancyOf(l, t)
	}
	return out
}

func occupancyOf(level int, t *hashindex.HashTable) levelOccupancy {
	o := levelOccupancy{Level: level, Capacity: t.Len()}
	n := t.Len()
	for i := int32(0); i < n; i++ {
		switch t.VisibleType(i) {
		case hashindex.VisibleResident:
			o.Resident++
		case hashindex.VisibleEvicted:
			o.Evicted++
		}
	}
	return o
}

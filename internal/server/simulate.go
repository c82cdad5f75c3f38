package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/pipeline"
	"github.com/InonELGABSI/houseScanner/internal/storage"
	"github.com/InonELGABSI/houseScanner/internal/types"
	"github.com/InonELGABSI/houseScanner/internal/usage"
)

// simRootPattern admits demo subfolder names: letters, digits,
// underscores and hyphens, with at least one alphanumeric character.
var simRootPattern = regexp.MustCompile(`^[A-Za-z0-9_-]*[A-Za-z0-9][A-Za-z0-9_-]*$`)

// SimulateMetadata describes one simulation run.
type SimulateMetadata struct {
	RequestID            string  `json:"request_id"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	Timestamp            string  `json:"timestamp"`
	SimulationPath       string  `json:"simulation_path"`
	TotalImages          int     `json:"total_images"`
	RoomsProcessed       int     `json:"rooms_processed"`
	PipelineVersion      string  `json:"pipeline_version"`
}

// SimulateResponse is the simulation response envelope.
type SimulateResponse struct {
	SimRoot       string                 `json:"sim_root"`
	Result        *types.HouseResult     `json:"result"`
	ClientSummary pipeline.ClientSummary `json:"client_summary"`
	CostInfo      usage.Summary          `json:"cost_info"`
	Metadata      SimulateMetadata       `json:"metadata"`
}

func (s *Server) runSimulation(c *gin.Context) {
	reqID := requestID(c)
	start := time.Now()
	log := s.logger.With(zap.String("request_id", reqID))

	simPath, ok := s.resolveSimRoot(c)
	if !ok {
		return
	}
	log.Info("simulation request received", zap.String("path", simPath))

	all, localRooms, err := s.local.CollectRooms(simPath)
	if err != nil {
		s.writeSimError(c, err)
		return
	}

	input, err := s.simulationInput(c.Request.Context(), reqID, all, localRooms)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "simulation processing failed", err)
		return
	}

	tracker := usage.NewTracker(s.logger)
	result, err := s.pipe.Run(c.Request.Context(), tracker, input)
	if err != nil {
		log.Error("simulation failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "simulation processing failed", err)
		return
	}

	log.Info("simulation completed", zap.Int("rooms_processed", len(result.Rooms)))
	c.JSON(http.StatusOK, s.simulateEnvelope(reqID, simPath, result, tracker, len(all), start))
}

func (s *Server) availableSimulations(c *gin.Context) {
	demoRoot := s.cfg.Data.DemoDir
	if _, err := os.Stat(demoRoot); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"available_simulations": []storage.Simulation{},
			"demo_root":             demoRoot,
			"status":                "demo_directory_not_found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available_simulations": s.local.AvailableSimulations(demoRoot),
		"demo_root":             demoRoot,
		"status":                "success",
	})
}

func (s *Server) simulateHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":      "simulate",
		"status":       "healthy",
		"capabilities": []string{"local_demo_processing", "custom_user_checklists", "full_pipeline"},
	})
}

// resolveSimRoot validates the root query parameter and resolves it
// under the demo directory. On failure the error response has already
// been written.
func (s *Server) resolveSimRoot(c *gin.Context) (string, bool) {
	demoRoot := s.cfg.Data.DemoDir
	root := c.Query("root")
	if root == "" {
		return demoRoot, true
	}
	if !simRootPattern.MatchString(root) {
		errorJSON(c, http.StatusBadRequest, "invalid root path characters", nil)
		return "", false
	}

	// The resolved target must stay under the demo root.
	target := filepath.Join(demoRoot, root)
	absRoot, err := filepath.Abs(demoRoot)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "simulation processing failed", err)
		return "", false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil || !strings.HasPrefix(absTarget, absRoot+string(filepath.Separator)) {
		errorJSON(c, http.StatusBadRequest, "path traversal not allowed", nil)
		return "", false
	}
	return target, true
}

func (s *Server) writeSimError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		errorJSON(c, http.StatusNotFound, "simulation folder not found", err)
	case errors.Is(err, storage.ErrNoRooms):
		errorJSON(c, http.StatusBadRequest, "no usable rooms in simulation folder", err)
	default:
		errorJSON(c, http.StatusInternalServerError, "simulation processing failed", err)
	}
}

// simulationInput loads the base definitions and the custom user
// checklist, pre-merges them, and pairs the result with the collected
// images.
func (s *Server) simulationInput(ctx context.Context, reqID string, all [][]byte, rooms []storage.Room) (pipeline.Input, error) {
	houseDef, err := s.store.House(ctx)
	if err != nil {
		return pipeline.Input{}, err
	}
	roomsDef, err := s.store.Rooms(ctx)
	if err != nil {
		return pipeline.Input{}, err
	}
	productsDef, err := s.store.Products(ctx)
	if err != nil {
		return pipeline.Input{}, err
	}
	custom := s.store.CustomUser(ctx)

	in := pipeline.Input{
		RequestID:         reqID,
		AllImages:         all,
		HouseChecklist:    checklist.PreMergeHouse(houseDef, custom),
		RoomsChecklist:    checklist.PreMergeRooms(roomsDef, custom),
		ProductsChecklist: checklist.PreMergeProducts(productsDef, custom),
	}
	for _, room := range rooms {
		in.Rooms = append(in.Rooms, pipeline.RoomImages{RoomID: room.ID, Images: room.Images})
	}
	return in, nil
}

func (s *Server) simulateEnvelope(reqID, simPath string, result *types.HouseResult,
	tracker *usage.Tracker, totalImages int, start time.Time) SimulateResponse {
	return SimulateResponse{
		SimRoot:       simPath,
		Result:        result,
		ClientSummary: pipeline.BuildClientSummary(result),
		CostInfo:      tracker.Summary(),
		Metadata: SimulateMetadata{
			RequestID:            reqID,
			ExecutionTimeSeconds: round2(time.Since(start).Seconds()),
			Timestamp:            time.Now().UTC().Format(time.RFC3339),
			SimulationPath:       simPath,
			TotalImages:          totalImages,
			RoomsProcessed:       len(result.Rooms),
			PipelineVersion:      pipelineVersion,
		},
	}
}

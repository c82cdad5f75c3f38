package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/pipeline"
	"github.com/InonELGABSI/houseScanner/internal/types"
	"github.com/InonELGABSI/houseScanner/internal/usage"
)

// RoomPayload is one room of a scan request.
type RoomPayload struct {
	RoomID    string   `json:"room_id" binding:"required"`
	ImageURLs []string `json:"image_urls"`
}

// ScanRequest carries per-room photo URLs and the final checklists to
// evaluate. The client merges base and custom definitions before
// sending; the service never sees that distinction on this path.
type ScanRequest struct {
	Rooms             []RoomPayload         `json:"rooms"`
	HouseChecklist    *checklist.Definition `json:"house_checklist"`
	RoomsChecklist    *checklist.Definition `json:"rooms_checklist"`
	ProductsChecklist *checklist.Definition `json:"products_checklist"`
}

// ScanMetadata describes one scan run.
type ScanMetadata struct {
	RequestID            string  `json:"request_id"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	Timestamp            string  `json:"timestamp"`
	TotalImages          int     `json:"total_images"`
	RoomsProcessed       int     `json:"rooms_processed"`
	PipelineVersion      string  `json:"pipeline_version"`
	TotalAgentExecutions int     `json:"total_agent_executions"`
}

// ScanResponse is the scan response envelope.
type ScanResponse struct {
	Result          *types.HouseResult     `json:"result"`
	ClientSummary   pipeline.ClientSummary `json:"client_summary"`
	CostInfo        usage.Summary          `json:"cost_info"`
	AgentExecutions []usage.Execution      `json:"agent_executions"`
	Metadata        ScanMetadata           `json:"metadata"`
}

func (s *Server) runScan(c *gin.Context) {
	reqID := requestID(c)
	start := time.Now()
	log := s.logger.With(zap.String("request_id", reqID))

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Rooms) == 0 {
		errorJSON(c, http.StatusBadRequest, "at least one room must be provided", nil)
		return
	}
	if req.HouseChecklist == nil || req.RoomsChecklist == nil || req.ProductsChecklist == nil {
		errorJSON(c, http.StatusBadRequest,
			"house_checklist, rooms_checklist and products_checklist are required", nil)
		return
	}
	log.Info("scan request received", zap.Int("rooms", len(req.Rooms)))

	var all [][]byte
	var rooms []pipeline.RoomImages
	for _, room := range req.Rooms {
		if len(room.ImageURLs) == 0 {
			log.Warn("room has no image urls", zap.String("room_id", room.RoomID))
			continue
		}
		images := s.fetcher.FetchAll(c.Request.Context(), room.ImageURLs)
		if len(images) == 0 {
			log.Warn("no images fetched for room", zap.String("room_id", room.RoomID))
			continue
		}
		rooms = append(rooms, pipeline.RoomImages{RoomID: room.RoomID, Images: images})
		all = append(all, images...)
	}
	if len(all) == 0 {
		errorJSON(c, http.StatusBadRequest, "no images were successfully fetched", nil)
		return
	}

	tracker := usage.NewTracker(s.logger)
	result, err := s.pipe.Run(c.Request.Context(), tracker, pipeline.Input{
		RequestID:         reqID,
		AllImages:         all,
		Rooms:             rooms,
		HouseChecklist:    req.HouseChecklist,
		RoomsChecklist:    req.RoomsChecklist,
		ProductsChecklist: req.ProductsChecklist,
	})
	if err != nil {
		log.Error("scan failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "internal server error", err)
		return
	}

	executions := tracker.Executions()
	log.Info("scan completed",
		zap.Int("rooms_processed", len(result.Rooms)),
		zap.Int("agent_executions", len(executions)))

	c.JSON(http.StatusOK, ScanResponse{
		Result:          result,
		ClientSummary:   pipeline.BuildClientSummary(result),
		CostInfo:        tracker.Summary(),
		AgentExecutions: executions,
		Metadata: ScanMetadata{
			RequestID:            reqID,
			ExecutionTimeSeconds: round2(time.Since(start).Seconds()),
			Timestamp:            time.Now().UTC().Format(time.RFC3339),
			TotalImages:          len(all),
			RoomsProcessed:       len(result.Rooms),
			PipelineVersion:      pipelineVersion,
			TotalAgentExecutions: len(executions),
		},
	})
}

func (s *Server) scanHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":      "scan",
		"status":       "healthy",
		"capabilities": []string{"image_url_processing", "custom_checklists", "full_pipeline"},
	})
}

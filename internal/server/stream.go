package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/pipeline"
	"github.com/InonELGABSI/houseScanner/internal/usage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamFrame is one websocket message on the simulation stream: stage
// events while the pipeline runs, then a single result or error frame.
type StreamFrame struct {
	Type     string               `json:"type"`
	Event    *pipeline.StageEvent `json:"event,omitempty"`
	Response *SimulateResponse    `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

const (
	frameStageEvent = "stage_event"
	frameResult     = "result"
	frameError      = "error"
)

func (s *Server) streamSimulation(c *gin.Context) {
	reqID := requestID(c)
	start := time.Now()
	log := s.logger.With(zap.String("request_id", reqID))

	simPath, ok := s.resolveSimRoot(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	log.Info("simulation stream opened", zap.String("path", simPath))

	all, localRooms, err := s.local.CollectRooms(simPath)
	if err != nil {
		s.writeStreamError(conn, log, err)
		return
	}
	input, err := s.simulationInput(c.Request.Context(), reqID, all, localRooms)
	if err != nil {
		s.writeStreamError(conn, log, err)
		return
	}

	tracker := usage.NewTracker(s.logger)
	emit := func(ev pipeline.StageEvent) {
		if err := conn.WriteJSON(StreamFrame{Type: frameStageEvent, Event: &ev}); err != nil {
			log.Warn("stream write failed", zap.Error(err))
		}
	}

	result, err := s.pipe.RunStream(c.Request.Context(), tracker, input, emit)
	if err != nil {
		log.Error("streamed simulation failed", zap.Error(err))
		s.writeStreamError(conn, log, err)
		return
	}

	envelope := s.simulateEnvelope(reqID, simPath, result, tracker, len(all), start)
	if err := conn.WriteJSON(StreamFrame{Type: frameResult, Response: &envelope}); err != nil {
		log.Warn("stream write failed", zap.Error(err))
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) writeStreamError(conn *websocket.Conn, log *zap.Logger, err error) {
	if werr := conn.WriteJSON(StreamFrame{Type: frameError, Error: err.Error()}); werr != nil {
		log.Warn("stream write failed", zap.Error(werr))
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
}

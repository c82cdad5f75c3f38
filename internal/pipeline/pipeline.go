// Package pipeline orchestrates the six-agent scan flow: house type
// classification, house checklist evaluation, a parallel per-room pass of
// classification, checklist, and products, and a closing pros/cons
// synthesis over the deterministic issue summary.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/types"
	"github.com/InonELGABSI/houseScanner/internal/usage"
	"github.com/InonELGABSI/houseScanner/internal/vision"
)

// Room stages sample at most three images per inference call.
const roomSampleLimit = 3

// Stage names reported through stage events, in execution order.
const (
	StageClassifyHouse  = "agent1_classify_house"
	StageHouseChecklist = "agent2_house_checklist"
	StageRooms          = "process_rooms_parallel"
	StageRoom           = "room"
	StageProsCons       = "agent6_pros_cons"
)

// Stage event statuses.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// StageEvent reports pipeline progress to log sinks and streaming
// clients. RoomID is set only on per-room events.
type StageEvent struct {
	Stage  string         `json:"stage"`
	Status string         `json:"status"`
	RoomID string         `json:"room_id,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// EmitFunc receives stage events as the pipeline advances. RunStream
// serializes calls, so implementations need no locking of their own.
type EmitFunc func(StageEvent)

// Inference is the slice of the llm client the pipeline drives.
// Implemented by llm.Client.
type Inference interface {
	ClassifyTypes(ctx context.Context, tracker *usage.Tracker, label string, allowed []string, images [][]byte) ([]string, error)
	EvaluateChecklist(ctx context.Context, tracker *usage.Tracker, label string, items []checklist.Item, images [][]byte, batchSize int) (*types.Evaluation, error)
	AnalyzeProsCons(ctx context.Context, tracker *usage.Tracker, houseIssues, roomIssues, productIssues []string) (types.ProsCons, error)
}

// RoomImages pairs a room id with its fetched images. Slice order follows
// the request and decides the order of room results.
type RoomImages struct {
	RoomID string
	Images [][]byte
}

// Input is one scan request ready for the pipeline: normalized images
// plus the three checklist definitions.
type Input struct {
	RequestID         string
	AllImages         [][]byte
	Rooms             []RoomImages
	HouseChecklist    *checklist.Definition
	RoomsChecklist    *checklist.Definition
	ProductsChecklist *checklist.Definition
}

// Pipeline runs the scan stages in order, fanning rooms out in parallel.
type Pipeline struct {
	inference Inference
	vision    *vision.Normalizer
	cfg       config.PipelineConfig
	logger    *zap.Logger
}

// New assembles a pipeline around an inference client and an image
// normalizer. Non-positive sampling knobs fall back to their defaults.
func New(inference Inference, normalizer *vision.Normalizer, cfg config.PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.MaxClassifyImages <= 0 {
		cfg.MaxClassifyImages = 4
	}
	if cfg.MaxChecklistImages <= 0 {
		cfg.MaxChecklistImages = 6
	}
	if cfg.ChecklistBatchSize <= 0 {
		cfg.ChecklistBatchSize = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		inference: inference,
		vision:    normalizer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the full pipeline and returns the assembled house result.
// A house, checklist, or synthesis failure aborts the run; individual
// room failures are logged and their rooms dropped from the result.
func (p *Pipeline) Run(ctx context.Context, tracker *usage.Tracker, in Input) (*types.HouseResult, error) {
	return p.RunStream(ctx, tracker, in, nil)
}

// RunStream executes the pipeline, reporting stage transitions through
// emit as they happen. A nil emit disables reporting.
func (p *Pipeline) RunStream(ctx context.Context, tracker *usage.Tracker, in Input, emit EmitFunc) (*types.HouseResult, error) {
	emit = serialized(emit)
	log := p.logger.With(zap.String("request_id", in.RequestID))

	log.Info("starting scan pipeline",
		zap.Int("total_images", len(in.AllImages)),
		zap.Int("rooms", len(in.Rooms)))

	houseTypes, err := p.classifyHouse(ctx, tracker, in, emit, log)
	if err != nil {
		return nil, err
	}

	houseEval, err := p.evaluateHouse(ctx, tracker, in, houseTypes, emit, log)
	if err != nil {
		return nil, err
	}

	rooms, err := p.processRooms(ctx, tracker, in, emit, log)
	if err != nil {
		return nil, err
	}

	result := &types.HouseResult{
		HouseTypes:     houseTypes,
		HouseChecklist: houseEval,
		Rooms:          rooms,
	}
	if err := p.synthesize(ctx, tracker, result, emit, log); err != nil {
		return nil, err
	}

	log.Info("scan pipeline complete",
		zap.Strings("house_types", result.HouseTypes),
		zap.Int("rooms_processed", len(result.Rooms)))
	return result, nil
}

func (p *Pipeline) classifyHouse(ctx context.Context, tracker *usage.Tracker, in Input, emit EmitFunc, log *zap.Logger) ([]string, error) {
	emit(StageEvent{Stage: StageClassifyHouse, Status: EventStarted})

	allowed := in.HouseChecklist.AllowedHouseTypes()
	images := p.vision.SampleForClassification(in.AllImages, p.cfg.MaxClassifyImages)
	log.Info("house classification input",
		zap.Int("images", len(images)),
		zap.Int("allowed_types", len(allowed)))

	houseTypes, err := p.inference.ClassifyTypes(ctx, tracker, "house type", allowed, images)
	if err != nil {
		emit(failedEvent(StageClassifyHouse, "", err))
		return nil, fmt.Errorf("house classification: %w", err)
	}

	log.Info("house classification result", zap.Strings("house_types", houseTypes))
	emit(StageEvent{Stage: StageClassifyHouse, Status: EventCompleted,
		Detail: map[string]any{"house_types": houseTypes}})
	return houseTypes, nil
}

func (p *Pipeline) evaluateHouse(ctx context.Context, tracker *usage.Tracker, in Input, houseTypes []string, emit EmitFunc, log *zap.Logger) (*types.Evaluation, error) {
	emit(StageEvent{Stage: StageHouseChecklist, Status: EventStarted})

	items := checklist.MergeHouse(in.HouseChecklist, houseTypes, nil)
	images := p.vision.SampleForChecklist(in.AllImages, p.cfg.MaxChecklistImages)
	log.Info("house checklist input",
		zap.Int("images", len(images)),
		zap.Int("items", len(items)))

	eval, err := p.inference.EvaluateChecklist(ctx, tracker, "house checklist", items, images, p.cfg.ChecklistBatchSize)
	if err != nil {
		emit(failedEvent(StageHouseChecklist, "", err))
		return nil, fmt.Errorf("house checklist: %w", err)
	}

	log.Info("house checklist result", zap.Int("items", eval.Len()))
	emit(StageEvent{Stage: StageHouseChecklist, Status: EventCompleted,
		Detail: map[string]any{"items": eval.Len()}})
	return eval, nil
}

// processRooms runs every room with at least one image through the room
// stages concurrently. A failed room is logged and excluded; surviving
// rooms keep their request order.
func (p *Pipeline) processRooms(ctx context.Context, tracker *usage.Tracker, in Input, emit EmitFunc, log *zap.Logger) ([]types.RoomResult, error) {
	emit(StageEvent{Stage: StageRooms, Status: EventStarted,
		Detail: map[string]any{"rooms": len(in.Rooms)}})

	results := make([]*types.RoomResult, len(in.Rooms))
	attempted := 0
	eg, egCtx := errgroup.WithContext(ctx)
	for i, room := range in.Rooms {
		i, room := i, room
		if len(room.Images) == 0 {
			log.Debug("skipping room without images", zap.String("room_id", room.RoomID))
			continue
		}
		attempted++
		eg.Go(func() error {
			emit(StageEvent{Stage: StageRoom, Status: EventStarted, RoomID: room.RoomID})
			res, err := p.processRoom(egCtx, tracker, room, in.RoomsChecklist, in.ProductsChecklist, log)
			if err != nil {
				log.Error("room processing failed",
					zap.String("room_id", room.RoomID),
					zap.Error(err))
				emit(failedEvent(StageRoom, room.RoomID, err))
				return nil
			}
			emit(StageEvent{Stage: StageRoom, Status: EventCompleted, RoomID: room.RoomID,
				Detail: map[string]any{"room_types": res.RoomTypes}})
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rooms := make([]types.RoomResult, 0, attempted)
	for _, res := range results {
		if res != nil {
			rooms = append(rooms, *res)
		}
	}
	log.Info("rooms processed",
		zap.Int("successful", len(rooms)),
		zap.Int("attempted", attempted))
	emit(StageEvent{Stage: StageRooms, Status: EventCompleted,
		Detail: map[string]any{"successful": len(rooms), "attempted": attempted}})
	return rooms, nil
}

// processRoom runs classification, the room checklist, and the products
// checklist for a single room.
func (p *Pipeline) processRoom(ctx context.Context, tracker *usage.Tracker, room RoomImages, roomsDef, productsDef *checklist.Definition, log *zap.Logger) (*types.RoomResult, error) {
	allowed := roomsDef.AllowedRoomTypes()
	clsImages := p.vision.SampleForClassification(room.Images, roomSampleLimit)
	roomTypes, err := p.inference.ClassifyTypes(ctx, tracker, "room type", allowed, clsImages)
	if err != nil {
		return nil, fmt.Errorf("room classification: %w", err)
	}
	log.Info("room classified",
		zap.String("room_id", room.RoomID),
		zap.Strings("room_types", roomTypes))

	items := checklist.MergeRoom(roomsDef, roomTypes, room.RoomID, nil)
	chkImages := p.vision.SampleForChecklist(room.Images, roomSampleLimit)
	issues, err := p.inference.EvaluateChecklist(ctx, tracker,
		fmt.Sprintf("room checklist (%s)", room.RoomID), items, chkImages, p.cfg.ChecklistBatchSize)
	if err != nil {
		return nil, fmt.Errorf("room checklist: %w", err)
	}

	products, err := p.inference.EvaluateChecklist(ctx, tracker,
		fmt.Sprintf("products checklist (%s)", room.RoomID), productsDef.BaseItems(), chkImages, p.cfg.ChecklistBatchSize)
	if err != nil {
		return nil, fmt.Errorf("products checklist: %w", err)
	}

	return &types.RoomResult{
		RoomID:    room.RoomID,
		RoomTypes: roomTypes,
		Issues:    issues,
		Products:  products,
	}, nil
}

// synthesize builds the issue summary and asks the text model for the
// closing pros/cons.
func (p *Pipeline) synthesize(ctx context.Context, tracker *usage.Tracker, result *types.HouseResult, emit EmitFunc, log *zap.Logger) error {
	emit(StageEvent{Stage: StageProsCons, Status: EventStarted})

	result.Summary = BuildSummary(result.HouseChecklist, result.Rooms)
	log.Info("issue summary built",
		zap.Int("house_issues", len(result.Summary.House)),
		zap.Int("room_issues", len(result.Summary.Rooms)),
		zap.Int("product_issues", len(result.Summary.Products)))

	prosCons, err := p.inference.AnalyzeProsCons(ctx, tracker,
		result.Summary.House, result.Summary.Rooms, result.Summary.Products)
	if err != nil {
		emit(failedEvent(StageProsCons, "", err))
		return fmt.Errorf("pros/cons analysis: %w", err)
	}
	result.ProsCons = prosCons

	log.Info("pros/cons synthesized",
		zap.Int("pros", len(prosCons.Pros)),
		zap.Int("cons", len(prosCons.Cons)))
	emit(StageEvent{Stage: StageProsCons, Status: EventCompleted,
		Detail: map[string]any{"pros": len(prosCons.Pros), "cons": len(prosCons.Cons)}})
	return nil
}

func failedEvent(stage, roomID string, err error) StageEvent {
	return StageEvent{Stage: stage, Status: EventFailed, RoomID: roomID,
		Detail: map[string]any{"error": err.Error()}}
}

// serialized wraps emit with a mutex so concurrent room goroutines can
// report safely. A nil emit becomes a no-op.
func serialized(emit EmitFunc) EmitFunc {
	if emit == nil {
		return func(StageEvent) {}
	}
	var mu sync.Mutex
	return func(ev StageEvent) {
		mu.Lock()
		defer mu.Unlock()
		emit(ev)
	}
}

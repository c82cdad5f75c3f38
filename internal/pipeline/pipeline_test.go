package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/config"
	"github.com/InonELGABSI/houseScanner/internal/llm"
	"github.com/InonELGABSI/houseScanner/internal/types"
	"github.com/InonELGABSI/houseScanner/internal/usage"
	"github.com/InonELGABSI/houseScanner/internal/vision"
)

var _ Inference = (*llm.Client)(nil)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type classifyCall struct {
	label   string
	allowed []string
	images  int
}

type checklistCall struct {
	label  string
	ids    []string
	images int
	batch  int
}

// fakeInference records every call and answers from the configured
// functions, defaulting to first-allowed classification and all-true
// checklists.
type fakeInference struct {
	mu             sync.Mutex
	classifyCalls  []classifyCall
	checklistCalls []checklistCall
	prosConsInput  [][]string

	classifyFn  func(label string, allowed []string) ([]string, error)
	checklistFn func(label string, items []checklist.Item) (*types.Evaluation, error)
	prosConsFn  func() (types.ProsCons, error)
}

func (f *fakeInference) ClassifyTypes(_ context.Context, _ *usage.Tracker, label string, allowed []string, images [][]byte) ([]string, error) {
	f.mu.Lock()
	f.classifyCalls = append(f.classifyCalls, classifyCall{label: label, allowed: allowed, images: len(images)})
	f.mu.Unlock()
	if f.classifyFn != nil {
		return f.classifyFn(label, allowed)
	}
	if len(allowed) == 0 {
		return nil, nil
	}
	return allowed[:1], nil
}

func (f *fakeInference) EvaluateChecklist(_ context.Context, _ *usage.Tracker, label string, items []checklist.Item, images [][]byte, batchSize int) (*types.Evaluation, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	f.mu.Lock()
	f.checklistCalls = append(f.checklistCalls, checklistCall{label: label, ids: ids, images: len(images), batch: batchSize})
	f.mu.Unlock()
	if f.checklistFn != nil {
		return f.checklistFn(label, items)
	}
	return evalForItems(items), nil
}

func (f *fakeInference) AnalyzeProsCons(_ context.Context, _ *usage.Tracker, house, rooms, products []string) (types.ProsCons, error) {
	f.mu.Lock()
	f.prosConsInput = [][]string{house, rooms, products}
	f.mu.Unlock()
	if f.prosConsFn != nil {
		return f.prosConsFn()
	}
	return types.ProsCons{Pros: []string{"bright"}, Cons: []string{"worn floor"}}, nil
}

func (f *fakeInference) checklistLabels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels := make([]string, 0, len(f.checklistCalls))
	for _, call := range f.checklistCalls {
		labels = append(labels, call.label)
	}
	return labels
}

// evalForItems answers every item affirmatively: booleans true,
// categoricals with their first option, conditionals existing in Good
// shape.
func evalForItems(items []checklist.Item) *types.Evaluation {
	eval := types.NewEvaluation()
	for _, it := range items {
		switch it.Kind {
		case checklist.KindBoolean:
			eval.Booleans[it.ID] = true
		case checklist.KindCategorical:
			opts := checklist.NormalizeOptions(it.Options)
			if len(opts) > 0 {
				eval.Categoricals[it.ID] = opts[0]
			} else {
				eval.Categoricals[it.ID] = types.QualityNA
			}
		case checklist.KindConditional:
			eval.Conditionals[it.ID] = types.ConditionalAnswer{
				Exists:    true,
				Condition: types.QualityGood,
				Subitems:  map[string]string{},
			}
		}
	}
	return eval
}

func testDefinitions() (house, rooms, products *checklist.Definition) {
	house = &checklist.Definition{
		Default: &checklist.Checklist{Items: []checklist.Item{
			{ID: "has_garden", Kind: checklist.KindBoolean},
		}},
		HouseTypes: map[string]checklist.Checklist{
			"apartment": {},
			"villa": {Items: []checklist.Item{
				{ID: "pool_state", Kind: checklist.KindCategorical, Options: []string{"Poor", "Good"}},
			}},
		},
	}
	rooms = &checklist.Definition{
		Default: &checklist.Checklist{Items: []checklist.Item{
			{ID: "walls_ok", Kind: checklist.KindBoolean},
		}},
		RoomTypes: map[string]checklist.Checklist{
			"bedroom": {Items: []checklist.Item{{ID: "has_closet", Kind: checklist.KindBoolean}}},
			"kitchen": {Items: []checklist.Item{{ID: "has_sink", Kind: checklist.KindBoolean}}},
		},
	}
	products = &checklist.Definition{Items: []checklist.Item{
		{ID: "fridge_present", Kind: checklist.KindBoolean},
	}}
	return house, rooms, products
}

func newTestPipeline(f *fakeInference) *Pipeline {
	norm := vision.NewNormalizer(config.ImageConfig{
		MaxEdge:          2048,
		Quality:          85,
		ClassifyMaxEdge:  512,
		ClassifyQuality:  70,
		ChecklistMaxEdge: 768,
		ChecklistQuality: 80,
	}, zap.NewNop())
	return New(f, norm, config.PipelineConfig{
		MaxClassifyImages:  4,
		MaxChecklistImages: 6,
		ChecklistBatchSize: 6,
	}, zap.NewNop())
}

func scanInput(house, rooms, products *checklist.Definition) Input {
	return Input{
		RequestID: "req-1",
		AllImages: [][]byte{{1}, {2}, {3}},
		Rooms: []RoomImages{
			{RoomID: "kitchen_1", Images: [][]byte{{1}, {2}}},
			{RoomID: "hallway", Images: nil},
			{RoomID: "bedroom_1", Images: [][]byte{{3}}},
		},
		HouseChecklist:    house,
		RoomsChecklist:    rooms,
		ProductsChecklist: products,
	}
}

func TestRunHappyPath(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{
		classifyFn: func(label string, allowed []string) ([]string, error) {
			if label == "house type" {
				return []string{"villa"}, nil
			}
			return []string{"kitchen"}, nil
		},
	}
	p := newTestPipeline(fake)
	tracker := usage.NewTracker(zap.NewNop())

	result, err := p.Run(context.Background(), tracker, scanInput(house, rooms, products))
	require.NoError(t, err)

	assert.Equal(t, []string{"villa"}, result.HouseTypes)
	assert.True(t, result.HouseChecklist.Booleans["has_garden"])
	assert.Equal(t, "Poor", result.HouseChecklist.Categoricals["pool_state"])

	require.Len(t, result.Rooms, 2, "room without images must be skipped")
	assert.Equal(t, "kitchen_1", result.Rooms[0].RoomID)
	assert.Equal(t, "bedroom_1", result.Rooms[1].RoomID)
	assert.Equal(t, []string{"kitchen"}, result.Rooms[0].RoomTypes)
	assert.True(t, result.Rooms[0].Issues.Booleans["has_sink"])
	assert.True(t, result.Rooms[0].Issues.Booleans["walls_ok"])
	assert.True(t, result.Rooms[0].Products.Booleans["fridge_present"])

	assert.Contains(t, result.Summary.House, "house:has_garden:true")
	assert.Contains(t, result.Summary.House, "house:pool_state:Poor")
	assert.Equal(t, []string{"bright"}, result.ProsCons.Pros)
	assert.Equal(t, []string{"worn floor"}, result.ProsCons.Cons)

	labels := fake.checklistLabels()
	assert.Contains(t, labels, "house checklist")
	assert.Contains(t, labels, "room checklist (kitchen_1)")
	assert.Contains(t, labels, "products checklist (kitchen_1)")
	assert.Contains(t, labels, "room checklist (bedroom_1)")
	assert.Contains(t, labels, "products checklist (bedroom_1)")
	for _, label := range labels {
		assert.NotContains(t, label, "hallway")
	}
}

func TestRunPassesAllowedTypesFromDefinitions(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{}
	p := newTestPipeline(fake)

	_, err := p.Run(context.Background(), usage.NewTracker(zap.NewNop()), scanInput(house, rooms, products))
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.classifyCalls)
	assert.Equal(t, "house type", fake.classifyCalls[0].label)
	assert.Equal(t, []string{"apartment", "villa"}, fake.classifyCalls[0].allowed)
	for _, call := range fake.classifyCalls[1:] {
		assert.Equal(t, "room type", call.label)
		assert.Equal(t, []string{"bedroom", "kitchen"}, call.allowed)
		assert.LessOrEqual(t, call.images, roomSampleLimit)
	}
}

func TestRunRoomFailureDropsOnlyThatRoom(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{
		checklistFn: func(label string, items []checklist.Item) (*types.Evaluation, error) {
			if strings.Contains(label, "(kitchen_1)") {
				return nil, errors.New("model unavailable")
			}
			return evalForItems(items), nil
		},
	}
	p := newTestPipeline(fake)

	var events []StageEvent
	result, err := p.RunStream(context.Background(), usage.NewTracker(zap.NewNop()), scanInput(house, rooms, products), func(ev StageEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, result.Rooms, 1)
	assert.Equal(t, "bedroom_1", result.Rooms[0].RoomID)

	var failed []StageEvent
	for _, ev := range events {
		if ev.Status == EventFailed {
			failed = append(failed, ev)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, StageRoom, failed[0].Stage)
	assert.Equal(t, "kitchen_1", failed[0].RoomID)
}

func TestRunStageFailuresAbort(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeInference
		wantErr string
	}{
		{
			name: "HouseClassification",
			fake: &fakeInference{classifyFn: func(label string, allowed []string) ([]string, error) {
				return nil, errors.New("upstream down")
			}},
			wantErr: "house classification",
		},
		{
			name: "HouseChecklist",
			fake: &fakeInference{checklistFn: func(label string, items []checklist.Item) (*types.Evaluation, error) {
				if label == "house checklist" {
					return nil, errors.New("upstream down")
				}
				return evalForItems(items), nil
			}},
			wantErr: "house checklist",
		},
		{
			name: "ProsCons",
			fake: &fakeInference{prosConsFn: func() (types.ProsCons, error) {
				return types.ProsCons{}, errors.New("upstream down")
			}},
			wantErr: "pros/cons analysis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			house, rooms, products := testDefinitions()
			p := newTestPipeline(tt.fake)

			_, err := p.Run(context.Background(), usage.NewTracker(zap.NewNop()), scanInput(house, rooms, products))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunStreamEventSequence(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{}
	p := newTestPipeline(fake)

	in := Input{
		RequestID:         "req-stream",
		AllImages:         [][]byte{{1}},
		Rooms:             []RoomImages{{RoomID: "kitchen_1", Images: [][]byte{{1}}}},
		HouseChecklist:    house,
		RoomsChecklist:    rooms,
		ProductsChecklist: products,
	}

	var events []StageEvent
	_, err := p.RunStream(context.Background(), usage.NewTracker(zap.NewNop()), in, func(ev StageEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	got := make([][2]string, 0, len(events))
	for _, ev := range events {
		got = append(got, [2]string{ev.Stage, ev.Status})
	}
	assert.Equal(t, [][2]string{
		{StageClassifyHouse, EventStarted},
		{StageClassifyHouse, EventCompleted},
		{StageHouseChecklist, EventStarted},
		{StageHouseChecklist, EventCompleted},
		{StageRooms, EventStarted},
		{StageRoom, EventStarted},
		{StageRoom, EventCompleted},
		{StageRooms, EventCompleted},
		{StageProsCons, EventStarted},
		{StageProsCons, EventCompleted},
	}, got)
}

func TestRunPreservesRoomOrderUnderConcurrency(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{
		checklistFn: func(label string, items []checklist.Item) (*types.Evaluation, error) {
			// First room finishes last.
			if strings.Contains(label, "(room_a)") {
				time.Sleep(30 * time.Millisecond)
			} else if strings.Contains(label, "(room_b)") {
				time.Sleep(10 * time.Millisecond)
			}
			return evalForItems(items), nil
		},
	}
	p := newTestPipeline(fake)

	in := Input{
		RequestID: "req-order",
		AllImages: [][]byte{{1}},
		Rooms: []RoomImages{
			{RoomID: "room_a", Images: [][]byte{{1}}},
			{RoomID: "room_b", Images: [][]byte{{2}}},
			{RoomID: "room_c", Images: [][]byte{{3}}},
		},
		HouseChecklist:    house,
		RoomsChecklist:    rooms,
		ProductsChecklist: products,
	}

	result, err := p.Run(context.Background(), usage.NewTracker(zap.NewNop()), in)
	require.NoError(t, err)

	require.Len(t, result.Rooms, 3)
	assert.Equal(t, "room_a", result.Rooms[0].RoomID)
	assert.Equal(t, "room_b", result.Rooms[1].RoomID)
	assert.Equal(t, "room_c", result.Rooms[2].RoomID)
}

func TestRunProsConsReceivesSummaryLines(t *testing.T) {
	house, rooms, products := testDefinitions()
	fake := &fakeInference{}
	p := newTestPipeline(fake)

	_, err := p.Run(context.Background(), usage.NewTracker(zap.NewNop()), scanInput(house, rooms, products))
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.prosConsInput, 3)
	assert.Contains(t, fake.prosConsInput[0], "house:has_garden:true")
	assert.Contains(t, fake.prosConsInput[1], "room:kitchen_1:walls_ok:true")
	assert.Contains(t, fake.prosConsInput[2], "product:kitchen_1:fridge_present:true")
}

func TestRunHonorsCancelledContext(t *testing.T) {
	house, rooms, products := testDefinitions()
	p := newTestPipeline(&fakeInference{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, usage.NewTracker(zap.NewNop()), scanInput(house, rooms, products))
	require.ErrorIs(t, err, context.Canceled)
}

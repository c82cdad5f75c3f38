package pipeline

import (
	"fmt"

	"github.com/InonELGABSI/houseScanner/internal/types"
)

// ScopeSummary lists the notable answers of one evaluation scope: the
// boolean items answered true and every categorical answer.
type ScopeSummary struct {
	BooleansTrue []string          `json:"booleans_true"`
	Categoricals map[string]string `json:"categoricals"`
}

// RoomStats counts the items evaluated for a single room.
type RoomStats struct {
	RoomID       string   `json:"room_id"`
	RoomTypes    []string `json:"room_types"`
	RoomItems    int      `json:"room_items"`
	ProductItems int      `json:"product_items"`
	TotalItems   int      `json:"total_items"`
}

// CompletionStats measures how much of the merged checklists received an
// answer. Coverage is answered items over total items across all scopes.
type CompletionStats struct {
	TotalRooms         int         `json:"total_rooms"`
	HouseTypesCount    int         `json:"house_types_count"`
	TotalHouseItems    int         `json:"total_house_items"`
	RoomStats          []RoomStats `json:"room_stats"`
	TotalItemsAnalyzed int         `json:"total_items_analyzed"`
	OverallCoverage    float64     `json:"overall_coverage"`
}

// ClientSummary is the condensed report returned alongside the raw result.
type ClientSummary struct {
	House           ScopeSummary            `json:"house"`
	Rooms           map[string]ScopeSummary `json:"rooms"`
	Products        map[string]ScopeSummary `json:"products"`
	ProsCons        types.ProsCons          `json:"pros_cons"`
	CompletionStats CompletionStats         `json:"completion_stats"`
}

// BuildSummary derives the deterministic issue-line digest from the house
// evaluation and the surviving room results. Custom is the concatenation
// of the house, room, and product sections.
func BuildSummary(house *types.Evaluation, rooms []types.RoomResult) types.Summary {
	s := types.Summary{
		House:    issueLines("house", house),
		Rooms:    []string{},
		Products: []string{},
	}
	for _, room := range rooms {
		s.Rooms = append(s.Rooms, issueLines("room:"+room.RoomID, room.Issues)...)
		s.Products = append(s.Products, issueLines("product:"+room.RoomID, room.Products)...)
	}
	s.Custom = make([]string, 0, len(s.House)+len(s.Rooms)+len(s.Products))
	s.Custom = append(s.Custom, s.House...)
	s.Custom = append(s.Custom, s.Rooms...)
	s.Custom = append(s.Custom, s.Products...)
	return s
}

// issueLines converts an evaluation into issue lines under the given
// scope. Booleans contribute a line only when true, categoricals only
// when answered with something other than N/A. A conditional that exists
// contributes an exists line, a condition line when the condition is
// non-empty, and one line per subitem answered other than N/A. Ids are
// walked in sorted order so identical inputs always produce identical
// lines.
func issueLines(scope string, eval *types.Evaluation) []string {
	lines := []string{}
	if eval == nil {
		return lines
	}
	for _, id := range eval.BooleanIDs() {
		if eval.Booleans[id] {
			lines = append(lines, fmt.Sprintf("%s:%s:true", scope, id))
		}
	}
	for _, id := range eval.CategoricalIDs() {
		if v := eval.Categoricals[id]; v != "" && v != types.QualityNA {
			lines = append(lines, fmt.Sprintf("%s:%s:%s", scope, id, v))
		}
	}
	for _, id := range eval.ConditionalIDs() {
		cond := eval.Conditionals[id]
		if !cond.Exists {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:%s:exists", scope, id))
		if cond.Condition != "" {
			lines = append(lines, fmt.Sprintf("%s:%s:condition:%s", scope, id, cond.Condition))
		}
		for _, sub := range cond.SubitemIDs() {
			if v := cond.Subitems[sub]; v != "" && v != types.QualityNA {
				lines = append(lines, fmt.Sprintf("%s:%s:%s:%s", scope, id, sub, v))
			}
		}
	}
	return lines
}

// BuildClientSummary condenses a house result into the client-facing
// shape: true booleans and categoricals per scope, the pros/cons, and
// completion statistics.
func BuildClientSummary(result *types.HouseResult) ClientSummary {
	cs := ClientSummary{
		House:    scopeSummary(result.HouseChecklist),
		Rooms:    make(map[string]ScopeSummary, len(result.Rooms)),
		Products: make(map[string]ScopeSummary, len(result.Rooms)),
		ProsCons: result.ProsCons,
	}
	for _, room := range result.Rooms {
		cs.Rooms[room.RoomID] = scopeSummary(room.Issues)
		cs.Products[room.RoomID] = scopeSummary(room.Products)
	}
	cs.CompletionStats = buildCompletionStats(result)
	return cs
}

func scopeSummary(eval *types.Evaluation) ScopeSummary {
	if eval == nil {
		return ScopeSummary{BooleansTrue: []string{}, Categoricals: map[string]string{}}
	}
	cats := make(map[string]string, len(eval.Categoricals))
	for id, v := range eval.Categoricals {
		cats[id] = v
	}
	return ScopeSummary{BooleansTrue: eval.TrueBooleans(), Categoricals: cats}
}

func buildCompletionStats(result *types.HouseResult) CompletionStats {
	stats := CompletionStats{
		TotalRooms:      len(result.Rooms),
		HouseTypesCount: len(result.HouseTypes),
		TotalHouseItems: result.HouseChecklist.Len(),
		RoomStats:       make([]RoomStats, 0, len(result.Rooms)),
	}

	total := stats.TotalHouseItems
	completed := countAnswered(result.HouseChecklist)
	for _, room := range result.Rooms {
		rs := RoomStats{
			RoomID:       room.RoomID,
			RoomTypes:    room.RoomTypes,
			RoomItems:    room.Issues.Len(),
			ProductItems: room.Products.Len(),
		}
		rs.TotalItems = rs.RoomItems + rs.ProductItems
		stats.RoomStats = append(stats.RoomStats, rs)
		total += rs.TotalItems
		completed += countAnswered(room.Issues) + countAnswered(room.Products)
	}

	stats.TotalItemsAnalyzed = total
	if total > 0 {
		stats.OverallCoverage = float64(completed) / float64(total)
	}
	return stats
}

// countAnswered counts items carrying a usable answer: every boolean and
// conditional counts, categoricals only when non-empty.
func countAnswered(eval *types.Evaluation) int {
	if eval == nil {
		return 0
	}
	n := len(eval.Booleans) + len(eval.Conditionals)
	for _, v := range eval.Categoricals {
		if v != "" {
			n++
		}
	}
	return n
}

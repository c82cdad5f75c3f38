// Package types defines the shared result model produced by the scan
// pipeline: per-kind evaluation maps, per-room results, and the final
// house-level report assembled from all six agents.
package types

import "sort"

// Quality labels used by categorical and conditional answers.
const (
	QualityPoor      = "Poor"
	QualityAverage   = "Average"
	QualityGood      = "Good"
	QualityExcellent = "Excellent"
	QualityNA        = "N/A"
)

// ConditionalAnswer is the three-part answer for a conditional checklist
// item: whether the thing exists, its overall condition, and a condition
// per declared subitem.
type ConditionalAnswer struct {
	Exists    bool              `json:"exists"`
	Condition string            `json:"condition"`
	Subitems  map[string]string `json:"subitems"`
}

// SubitemIDs returns the sorted subitem ids of the answer.
func (c ConditionalAnswer) SubitemIDs() []string {
	ids := make([]string, 0, len(c.Subitems))
	for id := range c.Subitems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Evaluation groups normalized checklist answers by item kind. After
// normalization every expected item id appears in exactly one of the
// three maps.
type Evaluation struct {
	Booleans     map[string]bool              `json:"booleans"`
	Categoricals map[string]string            `json:"categoricals"`
	Conditionals map[string]ConditionalAnswer `json:"conditionals"`
}

// NewEvaluation returns an Evaluation with all three maps allocated.
func NewEvaluation() *Evaluation {
	return &Evaluation{
		Booleans:     make(map[string]bool),
		Categoricals: make(map[string]string),
		Conditionals: make(map[string]ConditionalAnswer),
	}
}

// Absorb merges the entries of other into e. Batches are disjoint by id
// after dedup, so collisions simply take the later batch's value.
func (e *Evaluation) Absorb(other *Evaluation) {
	if other == nil {
		return
	}
	if e.Booleans == nil {
		e.Booleans = make(map[string]bool)
	}
	if e.Categoricals == nil {
		e.Categoricals = make(map[string]string)
	}
	if e.Conditionals == nil {
		e.Conditionals = make(map[string]ConditionalAnswer)
	}
	for k, v := range other.Booleans {
		e.Booleans[k] = v
	}
	for k, v := range other.Categoricals {
		e.Categoricals[k] = v
	}
	for k, v := range other.Conditionals {
		e.Conditionals[k] = v
	}
}

// Len returns the total number of answered items across all kinds.
func (e *Evaluation) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Booleans) + len(e.Categoricals) + len(e.Conditionals)
}

// BooleanIDs returns the sorted ids of boolean answers.
func (e *Evaluation) BooleanIDs() []string {
	if e == nil {
		return nil
	}
	ids := make([]string, 0, len(e.Booleans))
	for id := range e.Booleans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CategoricalIDs returns the sorted ids of categorical answers.
func (e *Evaluation) CategoricalIDs() []string {
	if e == nil {
		return nil
	}
	ids := make([]string, 0, len(e.Categoricals))
	for id := range e.Categoricals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConditionalIDs returns the sorted ids of conditional answers.
func (e *Evaluation) ConditionalIDs() []string {
	if e == nil {
		return nil
	}
	ids := make([]string, 0, len(e.Conditionals))
	for id := range e.Conditionals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TrueBooleans returns the sorted ids of boolean answers that are true.
func (e *Evaluation) TrueBooleans() []string {
	if e == nil {
		return nil
	}
	ids := make([]string, 0, len(e.Booleans))
	for id, v := range e.Booleans {
		if v {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Flatten collapses the evaluation into a single id-keyed map. Boolean
// and categorical answers map to their values directly; conditionals
// expand into their exists/condition/subitems structure.
func (e *Evaluation) Flatten() map[string]any {
	flat := make(map[string]any, e.Len())
	if e == nil {
		return flat
	}
	for k, v := range e.Booleans {
		flat[k] = v
	}
	for k, v := range e.Categoricals {
		flat[k] = v
	}
	for k, v := range e.Conditionals {
		sub := v.Subitems
		if sub == nil {
			sub = map[string]string{}
		}
		flat[k] = map[string]any{
			"exists":    v.Exists,
			"condition": v.Condition,
			"subitems":  sub,
		}
	}
	return flat
}

// ProsCons is the output of the synthesis agent.
type ProsCons struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// RoomResult holds the outcome of one room's classify, checklist, and
// products stages.
type RoomResult struct {
	RoomID    string      `json:"room_id"`
	RoomTypes []string    `json:"room_types"`
	Issues    *Evaluation `json:"issues"`
	Products  *Evaluation `json:"products"`
}

// Summary is the deterministic issue-line digest fed to the pros/cons
// agent. Custom is the concatenation of the other three sections.
type Summary struct {
	House    []string `json:"house"`
	Rooms    []string `json:"rooms"`
	Products []string `json:"products"`
	Custom   []string `json:"custom"`
}

// HouseResult is the complete scan outcome: detected house types, the
// house-level evaluation, per-room results, the issue summary, and the
// synthesized pros/cons.
type HouseResult struct {
	HouseTypes     []string     `json:"house_types"`
	HouseChecklist *Evaluation  `json:"house_checklist"`
	Rooms          []RoomResult `json:"rooms"`
	Summary        Summary      `json:"summary"`
	ProsCons       ProsCons     `json:"pros_cons"`
}

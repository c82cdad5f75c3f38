package llm

import (
	"encoding/json"
	"strings"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/types"
)

// extractJSON slices from the first "{" to the last "}" so prose or
// code fences around the object are ignored.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first == -1 || last == -1 || last < first {
		return raw
	}
	return raw[first : last+1]
}

// parseTypes reads a {"types": [...]} reply.
func parseTypes(content string) ([]string, error) {
	var parsed struct {
		Types []string `json:"types"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		return nil, err
	}
	return parsed.Types, nil
}

// filterAllowed keeps detected types that appear in the allowed list,
// reported in allowed list order without duplicates.
func filterAllowed(detected, allowed []string) []string {
	seen := make(map[string]struct{}, len(detected))
	for _, t := range detected {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(allowed))
	for _, t := range allowed {
		if _, ok := seen[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ParseChecklistResponse normalizes one batch reply. Answers are
// filtered to the expected IDs and snapped to their allowed options,
// and every expected item ends up present: missing booleans become
// false, missing categoricals and conditional fields take their
// defaults. A reply that fails to parse at all yields pure defaults.
func ParseChecklistResponse(content string, expected []checklist.Item) *types.Evaluation {
	result := types.NewEvaluation()

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extractJSON(content)), &top); err != nil {
		top = nil
	}

	expectedByID := make(map[string]checklist.Item, len(expected))
	for _, item := range expected {
		if item.ID == "" {
			continue
		}
		expectedByID[item.ID] = item
	}

	for id, v := range section(top, "booleans") {
		if _, ok := expectedByID[id]; !ok {
			continue
		}
		b, _ := v.(bool)
		result.Booleans[id] = b
	}

	for id, v := range section(top, "categoricals") {
		item, ok := expectedByID[id]
		if !ok {
			continue
		}
		result.Categoricals[id] = checklist.NormalizeOptionValue(v, checklist.NormalizeOptions(item.Options))
	}

	for id, v := range section(top, "conditionals") {
		item, ok := expectedByID[id]
		if !ok {
			continue
		}
		answer, ok := v.(map[string]any)
		if !ok {
			continue
		}
		result.Conditionals[id] = normalizeConditional(item, answer)
	}

	// Completion pass: everything the model omitted gets a default so
	// downstream merges see the full batch.
	for _, item := range expected {
		if item.ID == "" {
			continue
		}
		switch item.Kind {
		case checklist.KindBoolean:
			if _, ok := result.Booleans[item.ID]; !ok {
				result.Booleans[item.ID] = false
			}
		case checklist.KindCategorical:
			var current any
			if v, ok := result.Categoricals[item.ID]; ok {
				current = v
			}
			result.Categoricals[item.ID] = checklist.NormalizeOptionValue(current, checklist.NormalizeOptions(item.Options))
		case checklist.KindConditional:
			result.Conditionals[item.ID] = completeConditional(item, result.Conditionals[item.ID])
		}
	}

	return result
}

// section pulls one top-level key as an object, tolerating a key that
// is missing or has the wrong shape.
func section(top map[string]json.RawMessage, key string) map[string]any {
	raw, ok := top[key]
	if !ok {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// normalizeConditional snaps a model-provided conditional answer to
// the item's declared shape.
func normalizeConditional(item checklist.Item, answer map[string]any) types.ConditionalAnswer {
	scale := item.ConditionScale()
	exists, _ := answer["exists"].(bool)

	subValues, _ := answer["subitems"].(map[string]any)
	subitems := normalizeSubitems(item, scale, func(subID string) any {
		return subValues[subID]
	})

	return types.ConditionalAnswer{
		Exists:    exists,
		Condition: checklist.NormalizeOptionValue(answer["condition"], scale),
		Subitems:  subitems,
	}
}

// completeConditional rebuilds a conditional answer from whatever the
// model gave, defaulting the rest.
func completeConditional(item checklist.Item, existing types.ConditionalAnswer) types.ConditionalAnswer {
	scale := item.ConditionScale()

	var currentCondition any
	if existing.Condition != "" {
		currentCondition = existing.Condition
	}
	subitems := normalizeSubitems(item, scale, func(subID string) any {
		if v, ok := existing.Subitems[subID]; ok {
			return v
		}
		return nil
	})

	return types.ConditionalAnswer{
		Exists:    existing.Exists,
		Condition: checklist.NormalizeOptionValue(currentCondition, scale),
		Subitems:  subitems,
	}
}

// normalizeSubitems walks the item's declared subitems, normalizing
// the looked-up value for each. Returns nil when the item declares no
// subitems.
func normalizeSubitems(item checklist.Item, scale []string, lookup func(string) any) map[string]string {
	var out map[string]string
	for _, sub := range item.Subitems {
		if sub.ID == "" {
			continue
		}
		allowed := checklist.NormalizeOptions(sub.Options)
		if len(allowed) == 0 {
			allowed = scale
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[sub.ID] = checklist.NormalizeOptionValue(lookup(sub.ID), allowed)
	}
	return out
}

// parseProsCons reads a {"pros": [...], "cons": [...]} reply,
// returning empty lists when the reply is unusable.
func parseProsCons(content string) types.ProsCons {
	var parsed struct {
		Pros []string `json:"pros"`
		Cons []string `json:"cons"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		return types.ProsCons{Pros: []string{}, Cons: []string{}}
	}
	if parsed.Pros == nil {
		parsed.Pros = []string{}
	}
	if parsed.Cons == nil {
		parsed.Cons = []string{}
	}
	return types.ProsCons{Pros: parsed.Pros, Cons: parsed.Cons}
}

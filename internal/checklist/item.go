// Package checklist models inspection checklists: item records, the
// structured definition files they are loaded from, merge policies that
// layer type-specific and user-supplied items onto the defaults, and
// option normalization shared with response parsing.
package checklist

import (
	"sort"
	"strings"

	"github.com/InonELGABSI/houseScanner/internal/types"
)

// Kind discriminates checklist item records.
type Kind string

const (
	KindBoolean     Kind = "boolean"
	KindCategorical Kind = "categorical"
	KindConditional Kind = "conditional"
)

// DefaultConditionOptions is the fallback quality scale for conditional
// items that declare no scale of their own.
var DefaultConditionOptions = []string{
	types.QualityPoor,
	types.QualityAverage,
	types.QualityGood,
	types.QualityExcellent,
	types.QualityNA,
}

// SubItem is a categorical sub-question nested under a conditional item.
type SubItem struct {
	ID      string   `json:"id"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Item is a single checklist entry. Kind decides which of the optional
// fields apply: Options for categorical, ConditionOptions and Subitems
// for conditional.
type Item struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"type"`
	Text             string    `json:"text,omitempty"`
	Options          []string  `json:"options,omitempty"`
	ConditionOptions []string  `json:"condition_options,omitempty"`
	Subitems         []SubItem `json:"subitems,omitempty"`
}

// ConditionScale returns the quality scale governing this conditional
// item's condition answer: its own condition options, else its options,
// else the default scale.
func (it Item) ConditionScale() []string {
	if opts := NormalizeOptions(it.ConditionOptions); len(opts) > 0 {
		return opts
	}
	if opts := NormalizeOptions(it.Options); len(opts) > 0 {
		return opts
	}
	return DefaultConditionOptions
}

// Checklist is a named group of items inside a definition.
type Checklist struct {
	Items []Item `json:"items"`
}

// Definition is the wire shape of a checklist payload. Two forms occur:
// a flat, already-merged item list under "items", or shared defaults
// under "default" plus per-type groups keyed by house or room type.
// Callers must tolerate both.
type Definition struct {
	Items      []Item               `json:"items,omitempty"`
	Default    *Checklist           `json:"default,omitempty"`
	HouseTypes map[string]Checklist `json:"house_types,omitempty"`
	RoomTypes  map[string]Checklist `json:"room_types,omitempty"`
}

// BaseItems returns the definition's unconditional items: the flat list
// when present, otherwise the default group.
func (d *Definition) BaseItems() []Item {
	if d == nil {
		return nil
	}
	if len(d.Items) > 0 {
		return d.Items
	}
	if d.Default != nil {
		return d.Default.Items
	}
	return nil
}

// AllowedHouseTypes returns the sorted house type ids this definition
// declares. Flat definitions declare none.
func (d *Definition) AllowedHouseTypes() []string {
	if d == nil {
		return nil
	}
	return sortedKeys(d.HouseTypes)
}

// AllowedRoomTypes returns the sorted room type ids this definition
// declares.
func (d *Definition) AllowedRoomTypes() []string {
	if d == nil {
		return nil
	}
	return sortedKeys(d.RoomTypes)
}

func sortedKeys(m map[string]Checklist) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeOptions cleans an option list: trim whitespace, strip one
// surrounding pair of double quotes, drop empties, and de-duplicate
// case-insensitively keeping the first casing seen. Returns nil when
// nothing survives.
func NormalizeOptions(options []string) []string {
	var normalized []string
	for _, opt := range options {
		cleaned := cleanOption(opt)
		if cleaned == "" {
			continue
		}
		dup := false
		for _, existing := range normalized {
			if strings.EqualFold(existing, cleaned) {
				dup = true
				break
			}
		}
		if !dup {
			normalized = append(normalized, cleaned)
		}
	}
	return normalized
}

// NormalizeOptionValue coerces a reported answer onto the allowed scale.
// A case-insensitive match returns the canonical casing from allowed;
// otherwise the scale's "N/A" entry wins if it has one, else its first
// option. Without a scale the cleaned value passes through, defaulting
// to "N/A" when empty or not a string.
func NormalizeOptionValue(value any, allowed []string) string {
	candidate := ""
	if s, ok := value.(string); ok {
		candidate = cleanOption(s)
	}
	if len(allowed) > 0 {
		if candidate != "" {
			for _, opt := range allowed {
				if strings.EqualFold(opt, candidate) {
					return opt
				}
			}
		}
		for _, opt := range allowed {
			if strings.EqualFold(opt, types.QualityNA) {
				return opt
			}
		}
		return allowed[0]
	}
	if candidate != "" {
		return candidate
	}
	return types.QualityNA
}

func cleanOption(s string) string {
	cleaned := strings.TrimSpace(s)
	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`) {
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	return cleaned
}

package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
)

func TestItemsToInstruction(t *testing.T) {
	t.Run("Boolean", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{{ID: "has_sink", Kind: checklist.KindBoolean}})
		assert.Equal(t, "- has_sink : boolean", got)
	})

	t.Run("CategoricalWithOptions", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{{
			ID: "floor_type", Kind: checklist.KindCategorical, Options: []string{"Tile", "Wood"},
		}})
		assert.Equal(t, "- floor_type : categorical in {Tile, Wood}", got)
	})

	t.Run("CategoricalWithoutOptions", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{{ID: "color", Kind: checklist.KindCategorical}})
		assert.Equal(t, "- color : categorical in {any}", got)
	})

	t.Run("ConditionalWithSubitems", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{{
			ID:   "window",
			Kind: checklist.KindConditional,
			Subitems: []checklist.SubItem{
				{ID: "glass", Options: []string{"Clear", "Foggy"}},
				{ID: "frame"},
			},
		}})
		want := "- window : conditional -> exists:boolean, " +
			"condition in {Poor/Average/Good/Excellent/N/A}, " +
			"subitems {glass:Clear/Foggy, frame:Poor/Average/Good/Excellent/N/A}"
		assert.Equal(t, want, got)
	})

	t.Run("ConditionalWithoutSubitems", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{{
			ID: "boiler", Kind: checklist.KindConditional, ConditionOptions: []string{"OK", "Broken"},
		}})
		assert.Equal(t, "- boiler : conditional -> exists:boolean, condition in {OK/Broken}, subitems {{}}", got)
	})

	t.Run("UnknownKindSkipped", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{
			{ID: "weird", Kind: "matrix"},
			{ID: "has_sink", Kind: checklist.KindBoolean},
		})
		assert.Equal(t, "- has_sink : boolean", got)
	})

	t.Run("MultipleLines", func(t *testing.T) {
		got := itemsToInstruction([]checklist.Item{
			{ID: "a", Kind: checklist.KindBoolean},
			{ID: "b", Kind: checklist.KindBoolean},
		})
		assert.Equal(t, "- a : boolean\n- b : boolean", got)
	})
}

func TestClassificationPrompt(t *testing.T) {
	got := classificationPrompt("house type", []string{"villa", "apartment"})
	want := `You are a strict classifier for house type. ` +
		`Choose ALL applicable IDs ONLY from this list: ["villa", "apartment"]. ` +
		`Return them as a JSON object with key 'types' containing an array of strings.`
	assert.Equal(t, want, got)
}

func TestChecklistPrompts(t *testing.T) {
	system := checklistSystemPrompt("room checklist")
	assert.Contains(t, system, "You are a vision QA agent for room checklist.")
	assert.Contains(t, system, "include EVERY listed ID exactly once")
	assert.Contains(t, system, "Poor, Average, Good, Excellent, N/A")
	assert.Contains(t, system, "Do not add extra keys.")

	human := checklistHumanPrompt(2, []checklist.Item{{ID: "x", Kind: checklist.KindBoolean}})
	assert.Equal(t, "BATCH (2) items (total 1):\n- x : boolean\nReturn ONLY valid JSON.", human)
}

func TestProsConsPrompt(t *testing.T) {
	house := make([]string, 90)
	for i := range house {
		house[i] = fmt.Sprintf("house:item_%d:true", i)
	}
	got := prosConsPrompt(house, []string{"room:kitchen:leak"}, nil)

	assert.True(t, strings.HasPrefix(got, "Given these deterministic issue lines"))
	assert.Contains(t, got, "HOUSE:\n")
	assert.Contains(t, got, "ROOMS:\nroom:kitchen:leak")
	assert.Contains(t, got, "PRODUCTS:\n")
	assert.Contains(t, got, "house:item_79:true")
	assert.NotContains(t, got, "house:item_80:true")
	assert.Contains(t, got, "keys 'pros' and 'cons'")
}

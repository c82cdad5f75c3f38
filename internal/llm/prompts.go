package llm

import (
	"fmt"
	"strings"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
)

// Issue line caps keep the summary prompt inside the token budget.
const (
	maxHouseLines   = 80
	maxRoomLines    = 200
	maxProductLines = 200
)

func classificationPrompt(label string, allowed []string) string {
	quoted := make([]string, len(allowed))
	for i, t := range allowed {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return fmt.Sprintf(
		"You are a strict classifier for %s. "+
			"Choose ALL applicable IDs ONLY from this list: [%s]. "+
			"Return them as a JSON object with key 'types' containing an array of strings.",
		label, strings.Join(quoted, ", "))
}

func checklistSystemPrompt(label string) string {
	return "You are a vision QA agent for " + label + ". " +
		"Analyze the provided images and return a JSON object with keys: " +
		"booleans, categoricals, conditionals. " +
		"Each key maps item IDs to answers ONLY for this batch. " +
		"RULES: include EVERY listed ID exactly once; " +
		"if unsure set boolean false, categorical 'N/A'. " +
		"For conditional items create entry under conditionals: " +
		`{id:{"exists":bool, "condition":Quality|null, "subitems":{subid:Quality,...}|{}}}. ` +
		"Allowed Quality values: Poor, Average, Good, Excellent, N/A. " +
		"Do not add extra keys."
}

func checklistHumanPrompt(batchNum int, batch []checklist.Item) string {
	return fmt.Sprintf("BATCH (%d) items (total %d):\n%s\nReturn ONLY valid JSON.",
		batchNum, len(batch), itemsToInstruction(batch))
}

// itemsToInstruction renders one line per item describing the expected
// answer shape. Items with an unrecognized kind produce no line.
func itemsToInstruction(items []checklist.Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = "<unknown>"
		}
		switch item.Kind {
		case checklist.KindBoolean:
			lines = append(lines, fmt.Sprintf("- %s : boolean", id))
		case checklist.KindCategorical:
			desc := "any"
			if opts := checklist.NormalizeOptions(item.Options); len(opts) > 0 {
				desc = strings.Join(opts, ", ")
			}
			lines = append(lines, fmt.Sprintf("- %s : categorical in {%s}", id, desc))
		case checklist.KindConditional:
			scale := item.ConditionScale()
			segments := make([]string, 0, len(item.Subitems))
			for _, sub := range item.Subitems {
				subID := sub.ID
				if subID == "" {
					subID = "<sub>"
				}
				opts := checklist.NormalizeOptions(sub.Options)
				if len(opts) == 0 {
					opts = scale
				}
				segments = append(segments, subID+":"+strings.Join(opts, "/"))
			}
			subDesc := "{}"
			if len(segments) > 0 {
				subDesc = strings.Join(segments, ", ")
			}
			lines = append(lines, fmt.Sprintf(
				"- %s : conditional -> exists:boolean, condition in {%s}, subitems {%s}",
				id, strings.Join(scale, "/"), subDesc))
		}
	}
	return strings.Join(lines, "\n")
}

func prosConsPrompt(houseIssues, roomIssues, productIssues []string) string {
	var b strings.Builder
	b.WriteString("Given these deterministic issue lines, produce concise pros/cons " +
		"(focus on what's good vs what needs attention):\n\n")
	b.WriteString("HOUSE:\n")
	b.WriteString(strings.Join(capLines(houseIssues, maxHouseLines), "\n"))
	b.WriteString("\n\nROOMS:\n")
	b.WriteString(strings.Join(capLines(roomIssues, maxRoomLines), "\n"))
	b.WriteString("\n\nPRODUCTS:\n")
	b.WriteString(strings.Join(capLines(productIssues, maxProductLines), "\n"))
	b.WriteString("\n\nReturn a JSON object with keys 'pros' and 'cons', each an array of strings.")
	return b.String()
}

func capLines(lines []string, limit int) []string {
	if len(lines) > limit {
		return lines[:limit]
	}
	return lines
}

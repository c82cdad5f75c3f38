package llm

import (
	"context"
	"fmt"

	"github.com/InonELGABSI/houseScanner/internal/checklist"
	"github.com/InonELGABSI/houseScanner/internal/types"
	"github.com/InonELGABSI/houseScanner/internal/usage"
)

// ClassifyTypes asks the vision model which of the allowed type IDs
// apply to the images. The reply is filtered to the allowed list and
// reported in allowed list order.
func (c *Client) ClassifyTypes(ctx context.Context, tracker *usage.Tracker, label string, allowed []string, images [][]byte) ([]string, error) {
	prompt := classificationPrompt(label, allowed)
	content, err := c.completeJSON(ctx, tracker, c.cfg.VisionModel, label, prompt, images)
	if err != nil {
		return nil, err
	}

	detected, err := parseTypes(content)
	if err != nil {
		return nil, fmt.Errorf("%s: parse types: %w", label, err)
	}
	filtered := filterAllowed(detected, allowed)

	tracker.RecordExecution(label,
		map[string]any{"prompt": prompt, "image_count": len(images)},
		map[string]any{"raw_types": detected, "types": filtered},
		c.cfg.VisionModel)

	return filtered, nil
}

// EvaluateChecklist runs the vision QA agent over the images in item
// batches and returns one evaluation covering every item. Each batch
// reply is normalized independently before being folded in.
func (c *Client) EvaluateChecklist(ctx context.Context, tracker *usage.Tracker, label string, items []checklist.Item, images [][]byte, batchSize int) (*types.Evaluation, error) {
	if batchSize <= 0 {
		batchSize = 6
	}

	result := types.NewEvaluation()
	batchNum := 0
	for start := 0; start < len(items); start += batchSize {
		batch := items[start:min(start+batchSize, len(items))]
		batchNum++
		batchLabel := fmt.Sprintf("%s-batch%d", label, batchNum)

		prompt := checklistSystemPrompt(label) + "\n\n" + checklistHumanPrompt(batchNum, batch)
		content, err := c.completeJSON(ctx, tracker, c.cfg.VisionModel, batchLabel, prompt, images)
		if err != nil {
			return nil, err
		}

		tracker.RecordExecution(batchLabel,
			map[string]any{"prompt": prompt, "image_count": len(images), "item_count": len(batch)},
			map[string]any{"content": content},
			c.cfg.VisionModel)

		result.Absorb(ParseChecklistResponse(content, batch))
	}
	return result, nil
}

// AnalyzeProsCons turns the deterministic issue lines into a short
// pros and cons list with the text model.
func (c *Client) AnalyzeProsCons(ctx context.Context, tracker *usage.Tracker, houseIssues, roomIssues, productIssues []string) (types.ProsCons, error) {
	const label = "pros/cons analysis"

	prompt := prosConsPrompt(houseIssues, roomIssues, productIssues)
	content, err := c.completeJSON(ctx, tracker, c.cfg.TextModel, label, prompt, nil)
	if err != nil {
		return types.ProsCons{}, err
	}

	result := parseProsCons(content)
	tracker.RecordExecution(label,
		map[string]any{"prompt": prompt},
		map[string]any{"pros": result.Pros, "cons": result.Cons},
		c.cfg.TextModel)

	return result, nil
}

// pkg/credit/anthropic.go
package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const estimatorSystemPrompt = "You are a fair credit calculation system. " +
	"Analyze task completions and assign credit points based on multiple factors. " +
	"Only respond with valid JSON."

// AnthropicEstimator asks the Anthropic Messages API for a credit
// breakdown. Any transport, timeout or response-shape problem is returned
// as an error; the caller is expected to substitute the fallback.
type AnthropicEstimator struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicEstimator creates an AI-backed estimator. If apiKey is
// empty the SDK falls back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicEstimator(apiKey string, model anthropic.Model) *AnthropicEstimator {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = anthropic.ModelClaude3_5Haiku20241022
	}
	return &AnthropicEstimator{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Estimate sends the structured prompt and parses the JSON reply.
func (e *AnthropicEstimator) Estimate(ctx context.Context, in EstimationInput) (Breakdown, error) {
	if err := in.Validate(); err != nil {
		return Breakdown{}, err
	}

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: estimatorSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(in))),
		},
	})
	if err != nil {
		return Breakdown{}, fmt.Errorf("anthropic request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return parseBreakdown(text.String())
}

func buildPrompt(in EstimationInput) string {
	var b strings.Builder
	b.WriteString("You are an AI tasked with calculating fair credit points for a completed task.\n\n")
	b.WriteString("Task Details:\n")
	fmt.Fprintf(&b, "- Difficulty (1-10 scale): %d\n", in.Difficulty)
	fmt.Fprintf(&b, "- Expected completion time: %d minutes\n", in.ExpectedMinutes)
	fmt.Fprintf(&b, "- Actual completion time: %d minutes\n", in.ActualMinutes)
	fmt.Fprintf(&b, "- Submission is overdue: %t\n", in.IsOverdue)
	fmt.Fprintf(&b, "- Submission description: %q\n", in.SubmissionText)
	if in.PastPerformance != nil {
		fmt.Fprintf(&b, "- User history: %d tasks completed with average %.1f credits\n",
			in.PastPerformance.CompletedTasks, in.PastPerformance.AvgCredits)
	}
	b.WriteString(`
Please calculate credits based on:
1. Difficulty factor (harder tasks = more credits)
2. Time efficiency (faster than expected = bonus)
3. Quality assessment (based on submission description)
4. Penalties for overdue submissions

Return a JSON object with:
{
  "totalCredits": number,
  "timeFactor": number,
  "difficultyFactor": number,
  "qualityFactor": number,
  "bonusCredits": number,
  "latePenalty": number,
  "explanation": "detailed explanation of calculation"
}
`)
	return b.String()
}

// aiBreakdown mirrors the JSON contract with the model. Missing numeric
// fields default to zero; a field of the wrong type fails the whole parse.
type aiBreakdown struct {
	TotalCredits     float64 `json:"totalCredits"`
	TimeFactor       float64 `json:"timeFactor"`
	DifficultyFactor float64 `json:"difficultyFactor"`
	QualityFactor    float64 `json:"qualityFactor"`
	BonusCredits     float64 `json:"bonusCredits"`
	LatePenalty      float64 `json:"latePenalty"`
	Explanation      string  `json:"explanation"`
}

func parseBreakdown(raw string) (Breakdown, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return Breakdown{}, err
	}

	var ai aiBreakdown
	if err := json.Unmarshal([]byte(payload), &ai); err != nil {
		return Breakdown{}, fmt.Errorf("malformed estimator response: %w", err)
	}

	explanation := ai.Explanation
	if explanation == "" {
		explanation = "No explanation provided"
	}

	b := Breakdown{
		TotalCredits:     int(ai.TotalCredits),
		TimeFactor:       ai.TimeFactor,
		DifficultyFactor: ai.DifficultyFactor,
		QualityFactor:    ai.QualityFactor,
		BonusCredits:     ai.BonusCredits,
		LatePenalty:      ai.LatePenalty,
		Explanation:      explanation,
	}
	return b.Normalized(), nil
}

// extractJSONObject tolerates prose or markdown fences around the JSON
// object the model was asked for.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in estimator response")
	}
	return raw[start : end+1], nil
}

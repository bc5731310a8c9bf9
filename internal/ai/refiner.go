package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/utils"
)

const (
	systemInstruction = "You are an expert U.S. government contracting analyst. You classify businesses by NAICS code, stay within the material you are given and never invent facts."

	// DefaultSelectionCount is how many codes the model is asked to pick.
	DefaultSelectionCount = 5

	defaultMaxLogLength = 200
)

//go:embed prompts/summarize.md
var summarizeTemplate string

//go:embed prompts/select_naics.md
var selectTemplate string

// Refiner summarizes business descriptions and re-ranks NAICS candidates with a language model.
type Refiner struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewRefiner(generator Generator, logger *zap.Logger, maxLogLength int) *Refiner {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refiner{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Summarize condenses a business description into formal prose suitable for embedding.
func (r *Refiner) Summarize(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", errors.New("business description is required")
	}

	prompt := strings.ReplaceAll(summarizeTemplate, "{{DESCRIPTION}}", description)
	raw, err := r.generate(ctx, "summarize", prompt)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", errors.New("model returned an empty summary")
	}
	return summary, nil
}

// SelectNAICS asks the model to pick count codes out of candidates. Picks that are not
// among the candidates are discarded, and the result never exceeds count.
func (r *Refiner) SelectNAICS(ctx context.Context, description, summary string, candidates []naics.Classification, count int) ([]Selection, error) {
	if len(candidates) == 0 {
		return nil, errors.New("at least one candidate code is required")
	}
	if count <= 0 {
		count = DefaultSelectionCount
	}
	if count > len(candidates) {
		count = len(candidates)
	}

	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	prompt := buildSelectPrompt(description, summary, string(candidatesJSON), count)
	raw, err := r.generate(ctx, "select_naics", prompt)
	if err != nil {
		return nil, err
	}

	selections, err := parseSelections(raw)
	if err != nil {
		return nil, err
	}

	known := make(map[string]naics.Classification, len(candidates))
	for _, c := range candidates {
		known[c.Code] = c
	}

	result := make([]Selection, 0, count)
	seen := make(map[string]struct{}, count)
	for _, s := range selections {
		c, ok := known[s.Code]
		if !ok {
			r.logger.Debug("dropping code outside candidate list", zap.String("code", s.Code))
			continue
		}
		if _, dup := seen[s.Code]; dup {
			continue
		}
		seen[s.Code] = struct{}{}

		if s.Title == "" {
			s.Title = c.Title
		}
		s.Level = c.Level
		result = append(result, s)
		if len(result) == count {
			break
		}
	}

	return result, nil
}

func (r *Refiner) generate(ctx context.Context, task, prompt string) (string, error) {
	r.logger.Debug("ai generate content request",
		zap.String("task", task),
		zap.String("model", r.generator.Model()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", task, err)
	}

	r.logger.Debug("ai generate content response",
		zap.String("task", task),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	return raw, nil
}

func buildSelectPrompt(description, summary, candidatesJSON string, count int) string {
	if strings.TrimSpace(summary) == "" {
		summary = "none"
	}
	prompt := strings.ReplaceAll(selectTemplate, "{{DESCRIPTION}}", strings.TrimSpace(description))
	prompt = strings.ReplaceAll(prompt, "{{SUMMARY}}", strings.TrimSpace(summary))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", candidatesJSON)
	prompt = strings.ReplaceAll(prompt, "{{COUNT}}", strconv.Itoa(count))
	return prompt
}

func parseSelections(raw string) ([]Selection, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	items, ok := data["selections"].([]any)
	if !ok {
		return nil, errors.New("model response has no selections array")
	}

	selections := make([]Selection, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code := coerceString(fields["code"])
		if code == "" {
			continue
		}
		level := coerceFloat(fields["level"])
		if math.IsNaN(level) {
			level = 0
		}
		selections = append(selections, Selection{
			Code:          code,
			Level:         int(level),
			Title:         coerceString(fields["title"]),
			Justification: coerceString(fields["justification"]),
		})
	}

	return selections, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

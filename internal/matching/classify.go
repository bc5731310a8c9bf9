package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/ai"
	"github.com/spigell/govcon-matcher/internal/embedding"
	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/store"
)

// ErrRefinerDisabled is returned by RefineNAICS when no language model is configured.
var ErrRefinerDisabled = errors.New("ai refinement is not configured")

// ClassifyRequest asks for NAICS codes that describe a business.
type ClassifyRequest struct {
	Description string
	Limit       int
}

// ClassifyNAICS embeds the description and ranks the closest industry codes of levels 4 to 6
// by similarity plus specificity bonus.
func (s *Service) ClassifyNAICS(ctx context.Context, req ClassifyRequest) (result []naics.Classification, err error) {
	ctx, end := s.begin(ctx, "classify_naics", attribute.Int("limit", req.Limit))
	defer func() { end(err) }()

	description := govcon.NormalizeText(req.Description)
	if description == "" {
		return nil, govcon.AmbiguousInput("Provide a business description to classify.")
	}

	return s.classify(ctx, description, req.Limit)
}

func (s *Service) classify(ctx context.Context, text string, limit int) ([]naics.Classification, error) {
	if limit <= 0 {
		limit = naics.DefaultClassificationLimit
	}

	vector, err := s.embedder.Embed(ctx, text, embedding.Summary)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}

	levels := make([]int, 0, naics.MaxClassificationLevel-naics.MinClassificationLevel+1)
	for l := naics.MinClassificationLevel; l <= naics.MaxClassificationLevel; l++ {
		levels = append(levels, l)
	}

	neighbors, err := s.preselectPool(ctx, store.Query{
		Pool:   govcon.KindNAICS,
		Vector: vector,
		Levels: levels,
		Limit:  max(s.preselect, limit*2),
	})
	if err != nil {
		return nil, err
	}

	codes, err := s.records.NAICSByCode(ctx, neighborIDs(neighbors))
	if err != nil {
		return nil, fmt.Errorf("load naics codes: %w", err)
	}
	byCode := make(map[string]govcon.NAICSCode, len(codes))
	for _, c := range codes {
		byCode[c.Code] = c
	}

	candidates := make([]naics.Candidate, 0, len(neighbors))
	for _, p := range hydrate(neighbors, byCode) {
		candidates = append(candidates, naics.Candidate{Code: p.record, Similarity: 1 - p.distance})
	}

	return naics.RankClassifications(candidates, limit), nil
}

// RefineRequest asks a language model to choose among the classified codes.
type RefineRequest struct {
	Description string
	// Summarize condenses the description with the model before it is embedded.
	Summarize bool
	// Limit is the number of candidates classified before the model chooses.
	Limit int
	// Count is how many codes the model keeps.
	Count int
}

// Refinement is the model's pick out of the ranked candidates.
type Refinement struct {
	Summary    string                 `json:"summary,omitempty"`
	Candidates []naics.Classification `json:"candidates"`
	Selections []ai.Selection         `json:"selections"`
}

// RefineNAICS classifies the description and lets the configured model select and justify the best codes.
func (s *Service) RefineNAICS(ctx context.Context, req RefineRequest) (result Refinement, err error) {
	ctx, end := s.begin(ctx, "refine_naics",
		attribute.Bool("summarize", req.Summarize),
		attribute.Int("count", req.Count),
	)
	defer func() { end(err) }()

	if s.refiner == nil {
		return Refinement{}, ErrRefinerDisabled
	}

	description := govcon.NormalizeText(req.Description)
	if description == "" {
		return Refinement{}, govcon.AmbiguousInput("Provide a business description to classify.")
	}

	text := description
	if req.Summarize {
		summary, err := s.refiner.Summarize(ctx, description)
		if err != nil {
			return Refinement{}, fmt.Errorf("summarize description: %w", err)
		}
		result.Summary = summary
		text = summary
	}

	candidates, err := s.classify(ctx, text, req.Limit)
	if err != nil {
		return Refinement{}, err
	}
	result.Candidates = candidates
	if len(candidates) == 0 {
		result.Selections = []ai.Selection{}
		return result, nil
	}

	selections, err := s.refiner.SelectNAICS(ctx, description, result.Summary, candidates, req.Count)
	if err != nil {
		return Refinement{}, fmt.Errorf("select naics: %w", err)
	}
	result.Selections = selections

	s.logger.Debug("naics refined",
		zap.Int("candidates", len(candidates)),
		zap.Strings("selected", selectionCodes(selections)),
	)

	return result, nil
}

func selectionCodes(selections []ai.Selection) []string {
	out := make([]string, 0, len(selections))
	for _, sel := range selections {
		out = append(out, strings.TrimSpace(sel.Code))
	}
	return out
}

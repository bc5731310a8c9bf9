// Package mcpserver exposes the matching operations as MCP tools so that
// conversational agents can call them over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/metrics"
	"github.com/spigell/govcon-matcher/internal/naics"
	"github.com/spigell/govcon-matcher/internal/resolver"
)

const name = "govcon-matcher"

// Matcher is the part of matching.Service the tools call.
type Matcher interface {
	FindPartners(ctx context.Context, req matching.PartnersRequest) (matching.PartnersResult, error)
	ClassifyNAICS(ctx context.Context, req matching.ClassifyRequest) ([]naics.Classification, error)
	RankFit(ctx context.Context, req matching.FitRequest) (matching.FitResult, error)
}

type PartnersInput struct {
	LeadCompanyID                 string `json:"leadCompanyId,omitempty" jsonschema:"id of the lead company"`
	LeadCompanyUEI                string `json:"leadCompanyUEI,omitempty" jsonschema:"SAM unique entity id of the lead company"`
	LeadCompanyName               string `json:"leadCompanyName,omitempty" jsonschema:"exact name of the lead company"`
	OpportunityNoticeID           string `json:"opportunityNoticeId,omitempty" jsonschema:"notice id of the opportunity"`
	OpportunitySolicitationNumber string `json:"opportunitySolicitationNumber,omitempty" jsonschema:"solicitation number of the opportunity"`
	OpportunityTitle              string `json:"opportunityTitle,omitempty" jsonschema:"exact title of the opportunity"`
	Limit                         int    `json:"limit,omitempty" jsonschema:"number of partners to return, 1 to 50, default 12"`
}

type ClassifyInput struct {
	Description string `json:"description" jsonschema:"free text description of the business"`
	Limit       int    `json:"limit,omitempty" jsonschema:"number of codes to return, default 8"`
}

type FitInput struct {
	View                          string `json:"view,omitempty" jsonschema:"company ranks opportunities for a company, opportunity ranks companies for an opportunity"`
	CompanyID                     string `json:"companyId,omitempty" jsonschema:"id of the company"`
	CompanyUEI                    string `json:"companyUEI,omitempty" jsonschema:"SAM unique entity id of the company"`
	CompanyName                   string `json:"companyName,omitempty" jsonschema:"exact name of the company"`
	OpportunityNoticeID           string `json:"opportunityNoticeId,omitempty" jsonschema:"notice id of the opportunity"`
	OpportunitySolicitationNumber string `json:"opportunitySolicitationNumber,omitempty" jsonschema:"solicitation number of the opportunity"`
	OpportunityTitle              string `json:"opportunityTitle,omitempty" jsonschema:"exact title of the opportunity"`
	Limit                         int    `json:"limit,omitempty" jsonschema:"number of matches to return, default 6"`
}

type failurePayload struct {
	*govcon.Failure
	Hint string `json:"hint,omitempty"`
}

type tools struct {
	matcher Matcher
	logger  *zap.Logger
}

// NewServer registers the matching tools on a new MCP server.
func NewServer(matcher Matcher, version string, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{matcher: matcher, logger: logger}

	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_jv_partners",
		Description: "Find joint-venture partners that fill a lead company's NAICS gaps for an opportunity.",
	}, t.findPartners)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_naics",
		Description: "Suggest NAICS codes for a free text business description.",
	}, t.classify)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rank_entity_fit",
		Description: "Rank the opportunities that fit a company, or the companies that fit an opportunity.",
	}, t.rankFit)

	return server
}

// Handler serves the MCP endpoint at /mcp next to /metrics and /healthz.
func Handler(server *mcp.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (t *tools) findPartners(ctx context.Context, _ *mcp.CallToolRequest, in PartnersInput) (*mcp.CallToolResult, any, error) {
	res, err := t.matcher.FindPartners(ctx, matching.PartnersRequest{
		Lead: resolver.CompanyRef{ID: in.LeadCompanyID, UEI: in.LeadCompanyUEI, Name: in.LeadCompanyName},
		Opportunity: resolver.OpportunityRef{
			NoticeID:           in.OpportunityNoticeID,
			SolicitationNumber: in.OpportunitySolicitationNumber,
			Title:              in.OpportunityTitle,
		},
		Limit: in.Limit,
	})
	return t.respond("find_jv_partners", res, err)
}

func (t *tools) classify(ctx context.Context, _ *mcp.CallToolRequest, in ClassifyInput) (*mcp.CallToolResult, any, error) {
	res, err := t.matcher.ClassifyNAICS(ctx, matching.ClassifyRequest{Description: in.Description, Limit: in.Limit})
	return t.respond("classify_naics", map[string]any{"naicsCodes": res}, err)
}

func (t *tools) rankFit(ctx context.Context, _ *mcp.CallToolRequest, in FitInput) (*mcp.CallToolResult, any, error) {
	res, err := t.matcher.RankFit(ctx, matching.FitRequest{
		View:    matching.View(in.View),
		Company: resolver.CompanyRef{ID: in.CompanyID, UEI: in.CompanyUEI, Name: in.CompanyName},
		Opportunity: resolver.OpportunityRef{
			NoticeID:           in.OpportunityNoticeID,
			SolicitationNumber: in.OpportunitySolicitationNumber,
			Title:              in.OpportunityTitle,
		},
		Limit: in.Limit,
	})
	return t.respond("rank_entity_fit", res, err)
}

// respond renders a result or a structured failure as JSON text. Upstream errors are returned
// to the SDK, which reports them as tool errors.
func (t *tools) respond(tool string, result any, err error) (*mcp.CallToolResult, any, error) {
	if failure, ok := govcon.AsFailure(err); ok {
		t.logger.Info("tool call failed", zap.String("tool", tool), zap.String("kind", string(failure.Kind)))
		body, mErr := json.Marshal(failurePayload{Failure: failure, Hint: failure.Hint()})
		if mErr != nil {
			return nil, nil, fmt.Errorf("encode failure: %w", mErr)
		}
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, nil, nil
	}
	if err != nil {
		t.logger.Error("tool call error", zap.String("tool", tool), zap.Error(err))
		return nil, nil, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil, nil
}

package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/report"
	"github.com/spigell/govcon-matcher/internal/resolver"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Find joint-venture partners for a lead company on an opportunity",
	Run: func(cmd *cobra.Command, _ []string) {
		partners(cmd)
	},
}

func init() {
	rootCmd.AddCommand(partnersCmd)

	partnersCmd.Flags().String("lead-id", "", "lead company id")
	partnersCmd.Flags().String("lead-uei", "", "lead company UEI")
	partnersCmd.Flags().String("lead-name", "", "lead company name")
	addOpportunityFlags(partnersCmd)
	partnersCmd.Flags().IntP("limit", "l", matching.DefaultPartnerLimit, "how many partners to return (at most 50)")
	partnersCmd.Flags().BoolP("interactive", "i", false, "choose among suggestions when a reference is not found")
	addReportFlags(partnersCmd)
}

func addOpportunityFlags(cmd *cobra.Command) {
	cmd.Flags().String("notice-id", "", "opportunity notice id")
	cmd.Flags().String("solicitation", "", "opportunity solicitation number")
	cmd.Flags().String("title", "", "opportunity title")
}

func opportunityRef(cmd *cobra.Command) resolver.OpportunityRef {
	notice, _ := cmd.Flags().GetString("notice-id")
	solicitation, _ := cmd.Flags().GetString("solicitation")
	title, _ := cmd.Flags().GetString("title")
	return resolver.OpportunityRef{NoticeID: notice, SolicitationNumber: solicitation, Title: title}
}

// applySuggestion pins the reference of the suggested kind to the suggested id.
func applySuggestion(company *resolver.CompanyRef, opportunity *resolver.OpportunityRef, s govcon.Suggestion) {
	switch s.Kind {
	case govcon.KindCompany:
		*company = resolver.CompanyRef{ID: s.ID}
	case govcon.KindOpportunity:
		*opportunity = resolver.OpportunityRef{NoticeID: s.ID}
	}
}

func partners(cmd *cobra.Command) {
	ctx := context.Background()
	l, config := setup("find_partners")

	d := mustDeps(ctx, config, false, l)
	defer d.Close()

	id, _ := cmd.Flags().GetString("lead-id")
	uei, _ := cmd.Flags().GetString("lead-uei")
	name, _ := cmd.Flags().GetString("lead-name")
	limit, _ := cmd.Flags().GetInt("limit")
	interactive, _ := cmd.Flags().GetBool("interactive")

	req := matching.PartnersRequest{
		Lead:        resolver.CompanyRef{ID: id, UEI: uei, Name: name},
		Opportunity: opportunityRef(cmd),
		Limit:       limit,
	}

	res, err := disambiguate(interactive,
		func() (matching.PartnersResult, error) { return d.service.FindPartners(ctx, req) },
		func(s govcon.Suggestion) { applySuggestion(&req.Lead, &req.Opportunity, s) },
	)
	if err != nil {
		fail(l, err)
	}

	l.Info("partners found",
		zap.String("lead", res.Lead.ID),
		zap.String("opportunity", res.Opportunity.NoticeID),
		zap.Int("count", len(res.SuggestedPartners)),
		zap.Int("preselected", res.PreselectSampleSize),
	)

	writeReport(cmd, config, l, func(w io.Writer, format report.Format) error {
		return report.Partners(w, res, format)
	})
}

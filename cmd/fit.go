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

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Rank opportunities for a company, or companies for an opportunity",
	Long: `Rank opportunities for a company (--view company) or companies for an opportunity
(--view opportunity). Without --view the company reference wins when both are given.`,
	Run: func(cmd *cobra.Command, _ []string) {
		fit(cmd)
	},
}

func init() {
	rootCmd.AddCommand(fitCmd)

	fitCmd.Flags().String("view", "", "company or opportunity")
	fitCmd.Flags().String("company-id", "", "company id")
	fitCmd.Flags().String("company-uei", "", "company UEI")
	fitCmd.Flags().String("company-name", "", "company name")
	addOpportunityFlags(fitCmd)
	fitCmd.Flags().IntP("limit", "l", matching.DefaultFitLimit, "how many matches to return")
	fitCmd.Flags().BoolP("interactive", "i", false, "choose among suggestions when a reference is not found")
	addReportFlags(fitCmd)
}

func fit(cmd *cobra.Command) {
	ctx := context.Background()
	l, config := setup("rank_fit")

	d := mustDeps(ctx, config, false, l)
	defer d.Close()

	view, _ := cmd.Flags().GetString("view")
	id, _ := cmd.Flags().GetString("company-id")
	uei, _ := cmd.Flags().GetString("company-uei")
	name, _ := cmd.Flags().GetString("company-name")
	limit, _ := cmd.Flags().GetInt("limit")
	interactive, _ := cmd.Flags().GetBool("interactive")

	req := matching.FitRequest{
		View:        matching.View(view),
		Company:     resolver.CompanyRef{ID: id, UEI: uei, Name: name},
		Opportunity: opportunityRef(cmd),
		Limit:       limit,
	}

	res, err := disambiguate(interactive,
		func() (matching.FitResult, error) { return d.service.RankFit(ctx, req) },
		func(s govcon.Suggestion) { applySuggestion(&req.Company, &req.Opportunity, s) },
	)
	if err != nil {
		fail(l, err)
	}

	l.Info("fit ranked",
		zap.String("view", string(res.View)),
		zap.String("anchor", res.Anchor.ID()),
		zap.Int("count", len(res.Matches)),
		zap.Int("preselected", res.PreselectSampleSize),
	)

	writeReport(cmd, config, l, func(w io.Writer, format report.Format) error {
		return report.Fit(w, res, format)
	})
}

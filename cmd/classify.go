package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/ai"
	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/report"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [description]",
	Short: "Suggest NAICS codes for a business description",
	Run: func(cmd *cobra.Command, args []string) {
		classify(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("file", "", "read the description from a file")
	classifyCmd.Flags().IntP("limit", "l", 8, "how many candidate codes to rank")
	classifyCmd.Flags().Bool("refine", false, "let the configured language model select and justify the best codes")
	classifyCmd.Flags().Bool("summarize", false, "summarize the description with the language model before embedding it (implies --refine)")
	classifyCmd.Flags().Int("count", ai.DefaultSelectionCount, "how many codes the language model selects")
	addReportFlags(classifyCmd)
}

func classify(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	l, config := setup("classify_naics")

	description := strings.Join(args, " ")
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			l.Fatal("reading the description", zap.Error(err))
		}
		description = string(data)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	refine, _ := cmd.Flags().GetBool("refine")
	summarize, _ := cmd.Flags().GetBool("summarize")
	count, _ := cmd.Flags().GetInt("count")
	refine = refine || summarize

	d := mustDeps(ctx, config, refine, l)
	defer d.Close()

	var res matching.Refinement
	if refine {
		var err error
		res, err = d.service.RefineNAICS(ctx, matching.RefineRequest{
			Description: description,
			Summarize:   summarize,
			Limit:       limit,
			Count:       count,
		})
		if err != nil {
			fail(l, err)
		}
	} else {
		candidates, err := d.service.ClassifyNAICS(ctx, matching.ClassifyRequest{Description: description, Limit: limit})
		if err != nil {
			fail(l, err)
		}
		res.Candidates = candidates
	}

	l.Info("naics classified",
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("selected", len(res.Selections)),
	)

	writeReport(cmd, config, l, func(w io.Writer, format report.Format) error {
		return report.Classification(w, res, format)
	})
}

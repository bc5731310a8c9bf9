package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/embedding"
	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/samgov"
	"github.com/spigell/govcon-matcher/internal/secrets"
)

const dateFlagLayout = "2006-01-02"

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Pull opportunities from SAM.gov into the store and the vector index",
	Run: func(cmd *cobra.Command, _ []string) {
		ingest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	addSearchFlags(ingestCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "posted from date, YYYY-MM-DD (default is 30 days ago)")
	cmd.Flags().String("to", "", "posted to date, YYYY-MM-DD (default is today)")
	cmd.Flags().StringSlice("type", nil, "procurement type codes (default is r,p,o,k)")
	cmd.Flags().String("set-aside", "", "set-aside code, e.g. SBA or 8A")
	cmd.Flags().String("naics", "", "NAICS code")
	cmd.Flags().String("state", "", "place of performance state")
	cmd.Flags().String("keyword", "", "free text query")
}

func ingest(cmd *cobra.Command) {
	ctx := context.Background()
	l, config := setup("ingest")

	params, err := searchParams(cmd)
	if err != nil {
		l.Fatal("parsing search flags", zap.Error(err))
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "sam.gov api key",
		Value: config.SAMGov.APIKey,
		File:  config.SAMGov.APIKeyFile,
		Env:   "SAM_API_KEY",
	})
	if err != nil {
		l.Fatal(
			"loading sam.gov api key",
			zap.Error(err),
			zap.String("hint", "set SAM_API_KEY_FILE environment variable or the 'samgov.api-key-file' key in the configuration file"),
		)
	}

	client, err := samgov.New(l, samgov.Config{
		APIKey:     key,
		UserAgent:  config.SAMGov.UserAgent,
		PageSize:   config.SAMGov.PageSize,
		MaxRecords: config.SAMGov.MaxRecords,
	})
	if err != nil {
		l.Fatal("creating sam.gov client", zap.Error(err))
	}

	b, err := openStore(ctx, config.Store)
	if err != nil {
		l.Fatal("opening the store", zap.Error(err))
	}
	defer b.Close()

	embedder, closeCache, err := newEmbedder(config.Embedding, l)
	if err != nil {
		l.Fatal("creating the embedder", zap.Error(err))
	}
	if closeCache != nil {
		defer closeCache()
	}

	var indexer samgov.Indexer
	if config.ANN.Provider == "qdrant" {
		index, err := openQdrant(config.ANN.Qdrant)
		if err != nil {
			l.Fatal("connecting to qdrant", zap.Error(err))
		}
		defer index.Close()

		if err := index.EnsureCollection(ctx, govcon.KindOpportunity, embedding.Summary.Dimension()); err != nil {
			l.Fatal("preparing the opportunity collection", zap.Error(err))
		}
		indexer = index
	}

	stats, err := samgov.NewIngester(client, embedder, b.writer, indexer, l).Run(ctx, params)
	if err != nil {
		l.Fatal("ingesting notices", zap.Error(err), zap.Any("stats", stats))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		l.Fatal("writing stats", zap.Error(err))
	}
}

func searchParams(cmd *cobra.Command) (samgov.SearchParams, error) {
	var params samgov.SearchParams

	for flag, target := range map[string]*time.Time{"from": &params.PostedFrom, "to": &params.PostedTo} {
		raw, _ := cmd.Flags().GetString(flag)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateFlagLayout, raw)
		if err != nil {
			return params, err
		}
		*target = t
	}

	params.ProcurementTypes, _ = cmd.Flags().GetStringSlice("type")
	params.SetAside, _ = cmd.Flags().GetString("set-aside")
	params.NAICS, _ = cmd.Flags().GetString("naics")
	params.State, _ = cmd.Flags().GetString("state")
	params.Keyword, _ = cmd.Flags().GetString("keyword")

	return params, nil
}

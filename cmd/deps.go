package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/ai"
	"github.com/spigell/govcon-matcher/internal/ai/anthropic"
	"github.com/spigell/govcon-matcher/internal/ai/gemini"
	"github.com/spigell/govcon-matcher/internal/embedding"
	embgemini "github.com/spigell/govcon-matcher/internal/embedding/gemini"
	"github.com/spigell/govcon-matcher/internal/logger"
	"github.com/spigell/govcon-matcher/internal/matching"
	"github.com/spigell/govcon-matcher/internal/secrets"
	"github.com/spigell/govcon-matcher/internal/store"
	"github.com/spigell/govcon-matcher/internal/store/memory"
	"github.com/spigell/govcon-matcher/internal/store/postgres"
	"github.com/spigell/govcon-matcher/internal/store/qdrant"
	"github.com/spigell/govcon-matcher/internal/store/sqlite"
	"github.com/spigell/govcon-matcher/internal/store/supabase"
)

// backend is an opened record store. preselector is nil when the store cannot answer
// nearest neighbour queries by itself.
type backend struct {
	records     store.Records
	writer      store.Writer
	preselector store.Preselector
	closers     []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deps is everything a command needs to run the matcher.
type deps struct {
	*backend
	service *matching.Service
	// index is set when qdrant serves the nearest neighbour queries.
	index *qdrant.Client
}

func newDeps(ctx context.Context, config *Config, withAI bool, log *zap.Logger) (*deps, error) {
	b, err := openStore(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", config.Store.Driver, err)
	}
	d := &deps{backend: b}

	switch strings.ToLower(config.ANN.Provider) {
	case "store":
		if b.preselector == nil {
			b.Close()
			return nil, fmt.Errorf("the %s store has no vector search, set ann.provider to qdrant", config.Store.Driver)
		}
	case "qdrant":
		index, err := openQdrant(config.ANN.Qdrant)
		if err != nil {
			b.Close()
			return nil, err
		}
		d.index = index
		b.preselector = index
		b.closers = append(b.closers, index.Close)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown ann provider %q", config.ANN.Provider)
	}

	embedder, closeCache, err := newEmbedder(config.Embedding, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	if closeCache != nil {
		b.closers = append(b.closers, closeCache)
	}

	var opts []matching.Option
	if withAI {
		refiner, err := newRefiner(ctx, config.AI, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		opts = append(opts, matching.WithRefiner(refiner))
	}

	d.service = matching.New(b.records, b.preselector, embedder,
		matching.Config{PreselectLimit: config.ANN.PreselectLimit},
		log, opts...)

	return d, nil
}

func openStore(ctx context.Context, cfg *StoreConfig) (*backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory":
		if cfg.SeedFile == "" {
			return nil, errors.New("store.seed-file is required for the memory store")
		}
		s, err := memory.Load(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		return &backend{records: s, writer: s, preselector: s}, nil

	case "sqlite":
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, errors.New("store.sqlite.path is required")
		}
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return &backend{records: s, writer: s, preselector: s, closers: []func() error{s.Close}}, nil

	case "postgres":
		pg := cfg.Postgres
		if pg == nil {
			pg = &PostgresConfig{}
		}
		dsn, err := secrets.Load(secrets.Source{Name: "postgres dsn", Value: pg.DSN, File: pg.DSNFile, Env: "GOVCON_DB_DSN"})
		if err != nil {
			return nil, err
		}
		s, err := postgres.New(ctx, postgres.Config{
			DSN:             dsn,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
			MigrateOnStart:  pg.Migrate,
		})
		if err != nil {
			return nil, err
		}
		closer := func() error {
			s.Close()
			return nil
		}
		return &backend{records: s, writer: s, preselector: s, closers: []func() error{closer}}, nil

	case "supabase":
		sb := cfg.Supabase
		if sb == nil {
			return nil, errors.New("store.supabase section is required")
		}
		key, err := secrets.Load(secrets.Source{Name: "supabase api key", Value: sb.APIKey, File: sb.APIKeyFile, Env: "SUPABASE_API_KEY"})
		if err != nil {
			return nil, err
		}
		s, err := supabase.New(supabase.Config{URL: sb.URL, APIKey: key, CacheTTL: sb.CacheTTL})
		if err != nil {
			return nil, err
		}
		return &backend{records: s, writer: s, closers: []func() error{s.Close}}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openQdrant(cfg *QdrantConfig) (*qdrant.Client, error) {
	if cfg == nil {
		return nil, errors.New("ann.qdrant section is required")
	}
	key, err := secrets.Optional(secrets.Source{Name: "qdrant api key", Value: cfg.APIKey, File: cfg.APIKeyFile, Env: "QDRANT_API_KEY"})
	if err != nil {
		return nil, err
	}
	return qdrant.New(qdrant.Config{URL: cfg.URL, CollectionPrefix: cfg.CollectionPrefix, APIKey: key})
}

// newEmbedder builds the configured embedder. The returned closer releases the
// vector cache connection and is nil when there is nothing to release.
func newEmbedder(cfg *EmbeddingConfig, log *zap.Logger) (embedding.Embedder, func() error, error) {
	if strings.ToLower(cfg.Provider) != "gemini" {
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embgemini.New(embgemini.Config{
		APIKey:        key,
		SummaryModel:  cfg.Gemini.SummaryModel,
		FulltextModel: cfg.Gemini.FulltextModel,
	})
	if err != nil {
		return nil, nil, err
	}

	model := embedder.Model(embedding.Summary) + "+" + embedder.Model(embedding.Fulltext)
	log = logger.WithProvider(log, "gemini", model)

	var (
		cache  embedding.VectorCache
		closer func() error
	)
	switch strings.ToLower(cfg.Cache.Driver) {
	case "", "none":
		return embedder, nil, nil
	case "memory":
		cache = embedding.NewMemoryCache(cfg.Cache.TTL)
	case "redis":
		rc := cfg.Cache.Redis
		if rc == nil || rc.Addr == "" {
			return nil, nil, errors.New("embedding.cache.redis.addr is required")
		}
		password, err := secrets.Optional(secrets.Source{Name: "redis password", File: rc.PasswordFile, Env: "REDIS_PASSWORD"})
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: password,
			DB:       rc.DB,
		})
		cache = embedding.NewRedisCache(client, cfg.Cache.TTL)
		closer = client.Close
	default:
		return nil, nil, fmt.Errorf("unknown embedding cache driver %q", cfg.Cache.Driver)
	}

	return embedding.NewCachedEmbedder(embedder, cache, model, log), closer, nil
}

func newRefiner(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*ai.Refiner, error) {
	if !cfg.Enabled {
		return nil, errors.New("ai is disabled, set ai.enabled to use refinement")
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		gc := cfg.Gemini
		if gc == nil {
			gc = &GeminiConfig{}
		}
		key, err := secrets.Load(secrets.Source{Name: "gemini api key", Value: gc.APIKey, File: gc.APIKeyFile, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, err
		}
		generator, err := gemini.NewGenerator(ctx, gemini.Config{APIKey: key, Model: gc.Model, MaxRetries: gc.MaxRetries}, log)
		if err != nil {
			return nil, err
		}
		return ai.NewRefiner(generator, logger.WithProvider(log, "gemini", generator.Model()), gc.MaxLogLength), nil

	case "anthropic":
		ac := cfg.Anthropic
		if ac == nil {
			ac = &AnthropicConfig{}
		}
		key, err := secrets.Load(secrets.Source{Name: "anthropic api key", Value: ac.APIKey, File: ac.APIKeyFile, Env: "ANTHROPIC_API_KEY"})
		if err != nil {
			return nil, err
		}
		generator, err := anthropic.NewGenerator(anthropic.Config{APIKey: key, Model: ac.Model, MaxTokens: ac.MaxTokens})
		if err != nil {
			return nil, err
		}
		return ai.NewRefiner(generator, logger.WithProvider(log, "anthropic", generator.Model()), ac.MaxLogLength), nil

	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// output opens the report destination. An empty path means stdout.
func output(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

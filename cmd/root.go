package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "govcon-matcher"
)

type Config struct {
	Store        *StoreConfig     `mapstructure:"store"`
	ANN          *ANNConfig       `mapstructure:"ann"`
	Embedding    *EmbeddingConfig `mapstructure:"embedding"`
	AI           *AIConfig        `mapstructure:"ai"`
	SAMGov       *SAMGovConfig    `mapstructure:"samgov"`
	Serve        *ServeConfig     `mapstructure:"serve"`
	Tracing      *TracingConfig   `mapstructure:"tracing"`
	ReportFormat string           `mapstructure:"report-format"`
}

type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres or supabase.
	Driver   string          `mapstructure:"driver"`
	SeedFile string          `mapstructure:"seed-file"`
	SQLite   *SQLiteConfig   `mapstructure:"sqlite"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Supabase *SupabaseConfig `mapstructure:"supabase"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	DSNFile         string        `mapstructure:"dsn-file"`
	MaxConns        int32         `mapstructure:"max-conns"`
	MinConns        int32         `mapstructure:"min-conns"`
	MaxConnLifetime time.Duration `mapstructure:"max-conn-lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type SupabaseConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	CacheTTL   time.Duration `mapstructure:"cache-ttl"`
}

type ANNConfig struct {
	// Provider is store (the record store answers nearest neighbour queries) or qdrant.
	Provider       string        `mapstructure:"provider"`
	PreselectLimit int           `mapstructure:"preselect-limit"`
	Qdrant         *QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	URL              string `mapstructure:"url"`
	APIKey           string `mapstructure:"api-key"`
	APIKeyFile       string `mapstructure:"api-key-file"`
	CollectionPrefix string `mapstructure:"collection-prefix"`
}

type EmbeddingConfig struct {
	Provider string                 `mapstructure:"provider"`
	Gemini   *GeminiEmbeddingConfig `mapstructure:"gemini"`
	Cache    *CacheConfig           `mapstructure:"cache"`
}

type GeminiEmbeddingConfig struct {
	APIKey        string `mapstructure:"api-key"`
	APIKeyFile    string `mapstructure:"api-key-file"`
	SummaryModel  string `mapstructure:"summary-model"`
	FulltextModel string `mapstructure:"fulltext-model"`
}

type CacheConfig struct {
	// Driver is none, memory or redis.
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Redis  *RedisConfig  `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	PasswordFile string `mapstructure:"password-file"`
	DB           int    `mapstructure:"db"`
}

type AIConfig struct {
	Enabled   bool             `mapstructure:"enabled"`
	Provider  string           `mapstructure:"provider"`
	Gemini    *GeminiConfig    `mapstructure:"gemini"`
	Anthropic *AnthropicConfig `mapstructure:"anthropic"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type AnthropicConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxTokens    int64  `mapstructure:"max-tokens"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SAMGovConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	UserAgent  string `mapstructure:"user-agent"`
	PageSize   int    `mapstructure:"page-size"`
	MaxRecords int    `mapstructure:"max-records"`
}

type ServeConfig struct {
	Addr    string `mapstructure:"addr"`
	LogFile string `mapstructure:"log-file"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "govcon-matcher finds joint-venture partners, NAICS codes and best-fit opportunities for government contractors",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"store.postgres.dsn-file":       "GOVCON_DB_DSN_FILE",
		"store.supabase.api-key-file":   "SUPABASE_API_KEY_FILE",
		"ann.qdrant.api-key-file":       "QDRANT_API_KEY_FILE",
		"embedding.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.gemini.api-key-file":        "GEMINI_API_KEY_FILE",
		"ai.anthropic.api-key-file":     "ANTHROPIC_API_KEY_FILE",
		"samgov.api-key-file":           "SAM_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is govcon-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command works without a config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	config.defaults()

	return config, nil
}

// defaults fills the sections a minimal config leaves out.
func (c *Config) defaults() {
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.ANN == nil {
		c.ANN = &ANNConfig{}
	}
	if c.ANN.Provider == "" {
		c.ANN.Provider = "store"
	}
	if c.Embedding == nil {
		c.Embedding = &EmbeddingConfig{}
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}
	if c.Embedding.Gemini == nil {
		c.Embedding.Gemini = &GeminiEmbeddingConfig{}
	}
	if c.Embedding.Cache == nil {
		c.Embedding.Cache = &CacheConfig{Driver: "memory"}
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.SAMGov == nil {
		c.SAMGov = &SAMGovConfig{}
	}
	if c.Serve == nil {
		c.Serve = &ServeConfig{}
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8080"
	}
	if c.Tracing == nil {
		c.Tracing = &TracingConfig{}
	}
}

// Package samgov pulls contract opportunities from the SAM.gov Get Opportunities API
// and ingests them into the record store and the vector index.
package samgov

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.sam.gov/opportunities/v2/search"
	userAgent = "spigell/govcon-matcher"

	// Max value SAM.gov accepts is 1000; 50 keeps responses small.
	defaultPageSize   = 50
	defaultMaxRecords = 1000
)

// Config configures the SAM.gov client.
type Config struct {
	APIKey     string `mapstructure:"api-key"`
	UserAgent  string `mapstructure:"user-agent"`
	PageSize   int    `mapstructure:"page-size"`
	MaxRecords int    `mapstructure:"max-records"`
}

type Client struct {
	apiKey     string
	logger     *zap.Logger
	pageSize   int
	maxRecords int
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("sam.gov api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		apiKey:     key,
		logger:     logger,
		pageSize:   cfg.PageSize,
		maxRecords: cfg.MaxRecords,
		APIURL:     apiURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UserAgent: userAgent,
	}
	if c.pageSize <= 0 || c.pageSize > 1000 {
		c.pageSize = defaultPageSize
	}
	if c.maxRecords <= 0 {
		c.maxRecords = defaultMaxRecords
	}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		c.UserAgent = ua
	}

	return c, nil
}

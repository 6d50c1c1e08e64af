package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/clinicore/clinicore/pkg/httpclient"
	"github.com/clinicore/clinicore/pkg/knowledge"
)

func newJSONClient(timeout time.Duration, maxRetries int) *httpclient.Client {
	return httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpclient.WithMaxRetries(maxRetries),
	)
}

// GuidelineSource fetches clinical guidelines from an external provider.
// Treated as a slow, unreliable dependency: query failures degrade to an
// empty result at the call site, never fail a whole query.
type GuidelineSource interface {
	// FetchGuidelines returns guidelines for a condition keyword.
	FetchGuidelines(ctx context.Context, condition string) ([]knowledge.Guideline, error)

	// Name identifies the source for logging.
	Name() string
}

// NilGuidelineSource returns no guidelines. Used when no external source is
// configured.
type NilGuidelineSource struct{}

var _ GuidelineSource = NilGuidelineSource{}

func (NilGuidelineSource) FetchGuidelines(context.Context, string) ([]knowledge.Guideline, error) {
	return nil, nil
}

func (NilGuidelineSource) Name() string { return "none" }

// HTTPGuidelineSourceConfig configures the HTTP guideline source.
type HTTPGuidelineSourceConfig struct {
	// BaseURL of the guideline API. The source queries
	// {BaseURL}/guidelines?condition={condition}.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key,omitempty"`

	// Timeout per fetch. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries for transient failures. Defaults to 2.
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// SetDefaults applies default values.
func (c *HTTPGuidelineSourceConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

// Validate checks the configuration.
func (c *HTTPGuidelineSourceConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}

// HTTPGuidelineSource fetches guidelines from a JSON HTTP API.
type HTTPGuidelineSource struct {
	config HTTPGuidelineSourceConfig
	client *httpclient.Client
}

var _ GuidelineSource = (*HTTPGuidelineSource)(nil)

// NewHTTPGuidelineSource creates a source against the configured API.
func NewHTTPGuidelineSource(config HTTPGuidelineSourceConfig) (*HTTPGuidelineSource, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid guideline source config: %w", err)
	}
	return &HTTPGuidelineSource{
		config: config,
		client: newJSONClient(config.Timeout, config.MaxRetries),
	}, nil
}

func (s *HTTPGuidelineSource) Name() string { return "http:" + s.config.BaseURL }

type guidelineFetchResponse struct {
	Guidelines []knowledge.Guideline `json:"guidelines"`
}

func (s *HTTPGuidelineSource) FetchGuidelines(ctx context.Context, condition string) ([]knowledge.Guideline, error) {
	endpoint := fmt.Sprintf("%s/guidelines?condition=%s", s.config.BaseURL, url.QueryEscape(condition))

	headers := map[string]string{}
	if s.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + s.config.APIKey
	}

	var resp guidelineFetchResponse
	if err := s.client.GetJSON(ctx, endpoint, headers, &resp); err != nil {
		return nil, NewExternalServiceError("guideline_source", err)
	}
	return resp.Guidelines, nil
}

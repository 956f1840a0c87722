// Package drugapi queries the public drug-information registry.
package drugapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"familydose/internal/models"
)

// ErrNotConfigured is returned when no registry endpoint is set
var ErrNotConfigured = errors.New("drug lookup is not configured")

// DefaultPageSize matches the registry's own page size for name searches
const DefaultPageSize = 20

// Config selects the endpoint and how to authenticate against it
type Config struct {
	BaseURL string
	// APIKey is sent as the serviceKey query parameter
	APIKey string
	// OAuth2 client credentials take precedence over APIKey when all are set
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// Client is a drug registry client
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// New creates a client. With an empty BaseURL every call returns ErrNotConfigured.
func New(ctx context.Context, cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
		logger.Info("drug lookup using oauth2 client credentials", zap.String("token_url", cfg.TokenURL))
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		log:     logger,
	}
}

// The registry wraps results as body.items, which is an array for several
// matches and a bare object for exactly one.
type response struct {
	Body struct {
		Items      json.RawMessage `json:"items"`
		TotalCount int             `json:"totalCount"`
	} `json:"body"`
}

type item struct {
	ItemSeq         string `json:"itemSeq"`
	ItemName        string `json:"itemName"`
	EntpName        string `json:"entpName"`
	EfcyQesitm      string `json:"efcyQesitm"`
	UseMethodQesitm string `json:"useMethodQesitm"`
	AtpnWarnQesitm  string `json:"atpnWarnQesitm"`
	PackUnit        string `json:"packUnit"`
}

func (it item) toModel() models.DrugInfo {
	return models.DrugInfo{
		Seq:          it.ItemSeq,
		Name:         it.ItemName,
		Manufacturer: it.EntpName,
		Efficacy:     it.EfcyQesitm,
		Usage:        it.UseMethodQesitm,
		Warnings:     it.AtpnWarnQesitm,
		PackUnit:     it.PackUnit,
	}
}

// Search finds drugs whose name matches
func (c *Client) Search(ctx context.Context, name string) ([]models.DrugInfo, error) {
	params := url.Values{}
	params.Set("itemName", name)
	params.Set("pageNo", "1")
	params.Set("numOfRows", strconv.Itoa(DefaultPageSize))
	return c.query(ctx, params)
}

// Details fetches a single drug by registry sequence number, or nil
func (c *Client) Details(ctx context.Context, seq string) (*models.DrugInfo, error) {
	params := url.Values{}
	params.Set("itemSeq", seq)
	drugs, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(drugs) == 0 {
		return nil, nil
	}
	return &drugs[0], nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]models.DrugInfo, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if c.apiKey != "" {
		params.Set("serviceKey", c.apiKey)
	}
	params.Set("type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build drug lookup request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drug lookup failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("drug lookup",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("drug lookup returned %d: %s", resp.StatusCode, snippet)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode drug lookup response: %w", err)
	}
	items, err := decodeItems(body.Body.Items)
	if err != nil {
		return nil, err
	}

	drugs := make([]models.DrugInfo, 0, len(items))
	for _, it := range items {
		drugs = append(drugs, it.toModel())
	}
	return drugs, nil
}

func decodeItems(raw json.RawMessage) ([]item, error) {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode drug items: %w", err)
		}
		return items, nil
	}
	var single item
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to decode drug item: %w", err)
	}
	return []item{single}, nil
}

package erp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
)

const maxCatalogBodySize = 32 << 20

// Client pulls the product catalog from the ERP over HTTP basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *logger.Logger
}

// NewClient builds an ERP client, or nil when no base URL is configured.
// A nil client is safe to call and reports itself as a no-op.
func NewClient(cfg config.ERPConfig, log *logger.Logger) *Client {
	if cfg.GetERPBaseURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetERPBaseURL(), "/"),
		username: cfg.GetERPUsername(),
		password: cfg.GetERPPassword(),
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// FetchCatalog downloads and normalizes the full ERP catalog.
func (c *Client) FetchCatalog(ctx context.Context) ([]Item, error) {
	if c == nil {
		return nil, nil
	}

	url := c.baseURL + "/catalog"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp catalog request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("erp returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBodySize))
	if err != nil {
		return nil, fmt.Errorf("read erp catalog: %w", err)
	}

	return NormalizeItems(raw), nil
}

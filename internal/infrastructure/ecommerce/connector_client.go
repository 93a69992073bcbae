package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appsync "github.com/storepulse/backend/internal/application/sync"
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// maxResponseSize is the maximum allowed response size from a gateway (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrConnectorUnavailable indicates the gateway rejected or failed the call
	ErrConnectorUnavailable = errors.New("connector: gateway request failed")
	// ErrConnectorNotConfigured indicates no gateway exists for the platform
	ErrConnectorNotConfigured = errors.New("connector: platform not configured")
)

// ConnectorClient talks to one platform's connector gateway over HTTP.
type ConnectorClient struct {
	config     *ConnectorConfig
	platform   syncdomain.Platform
	httpClient *http.Client
}

// NewConnectorClient creates a gateway client for one platform
func NewConnectorClient(platform syncdomain.Platform, config *ConnectorConfig) (*ConnectorClient, error) {
	if !platform.IsValid() {
		return nil, syncdomain.ErrInvalidPlatform
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ConnectorClient{
		config:   config,
		platform: platform,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

type planRequest struct {
	OrganizationID string `json:"organization_id"`
	SyncType       string `json:"sync_type"`
}

type planResponse struct {
	TotalBatches    int   `json:"total_batches"`
	BaselineRecords int   `json:"baseline_records"`
	CostPerBatch    int64 `json:"cost_per_batch"`
}

type batchRequest struct {
	OrganizationID string `json:"organization_id"`
	Batch          int    `json:"batch"`
}

type batchResponse struct {
	Records  int                       `json:"records"`
	Entities []string                  `json:"entities"`
	Cursor   *string                   `json:"cursor"`
	Stages   syncdomain.StageStatusSet `json:"stages"`
}

// Plan asks the gateway to size a sync run for one organization.
func (c *ConnectorClient) Plan(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, syncType syncdomain.SyncType) (*appsync.SyncPlan, error) {
	if platform != c.platform {
		return nil, ErrConnectorNotConfigured
	}

	var resp planResponse
	err := c.post(ctx, "/v1/sync/plan", planRequest{
		OrganizationID: organizationID.String(),
		SyncType:       string(syncType),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.TotalBatches < 0 || resp.CostPerBatch < 0 {
		return nil, fmt.Errorf("%w: malformed plan for %s", ErrConnectorUnavailable, platform)
	}
	return &appsync.SyncPlan{
		TotalBatches:    resp.TotalBatches,
		BaselineRecords: resp.BaselineRecords,
		CostPerBatch:    resp.CostPerBatch,
	}, nil
}

// SyncBatch has the gateway pull and load one batch of platform data.
func (c *ConnectorClient) SyncBatch(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, batch int) (*appsync.BatchOutcome, error) {
	if platform != c.platform {
		return nil, ErrConnectorNotConfigured
	}

	var resp batchResponse
	err := c.post(ctx, "/v1/sync/batch", batchRequest{
		OrganizationID: organizationID.String(),
		Batch:          batch,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &appsync.BatchOutcome{
		Records:  resp.Records,
		Entities: resp.Entities,
		Cursor:   resp.Cursor,
		Stages:   resp.Stages,
	}, nil
}

func (c *ConnectorClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("connector: encode request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("connector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrConnectorUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrConnectorUnavailable, path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrConnectorUnavailable, err)
	}
	return nil
}

var _ appsync.PlatformClient = (*ConnectorClient)(nil)

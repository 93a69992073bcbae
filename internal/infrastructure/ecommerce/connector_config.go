package ecommerce

import "errors"

// ConnectorConfig holds the settings for one platform connector gateway.
// Gateways wrap the raw platform APIs (Shopify Admin, Meta Marketing) and
// expose a uniform plan/batch ingestion surface to this service.
type ConnectorConfig struct {
	// BaseURL is the gateway root, e.g. https://shopify-connector.internal
	BaseURL string
	// APIToken authenticates this service against the gateway
	APIToken string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

var (
	ErrConnectorMissingBaseURL = errors.New("connector: base URL is required")
	ErrConnectorMissingToken   = errors.New("connector: API token is required")
)

// NewConnectorConfig creates a connector configuration with defaults
func NewConnectorConfig(baseURL, apiToken string) *ConnectorConfig {
	return &ConnectorConfig{
		BaseURL:        baseURL,
		APIToken:       apiToken,
		TimeoutSeconds: 30,
	}
}

// Validate validates the connector configuration
func (c *ConnectorConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConnectorMissingBaseURL
	}
	if c.APIToken == "" {
		return ErrConnectorMissingToken
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

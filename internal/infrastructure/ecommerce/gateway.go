package ecommerce

import (
	"context"

	"github.com/google/uuid"

	appsync "github.com/storepulse/backend/internal/application/sync"
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// Gateway routes sync calls to the connector client registered for each
// platform. It is the single PlatformClient the worker pool is wired with.
type Gateway struct {
	clients map[syncdomain.Platform]appsync.PlatformClient
}

// NewGateway creates an empty gateway
func NewGateway() *Gateway {
	return &Gateway{clients: make(map[syncdomain.Platform]appsync.PlatformClient)}
}

// Register adds a client for one platform, replacing any previous one.
func (g *Gateway) Register(platform syncdomain.Platform, client appsync.PlatformClient) {
	g.clients[platform] = client
}

// Plan delegates to the platform's client.
func (g *Gateway) Plan(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, syncType syncdomain.SyncType) (*appsync.SyncPlan, error) {
	client, ok := g.clients[platform]
	if !ok {
		return nil, ErrConnectorNotConfigured
	}
	return client.Plan(ctx, organizationID, platform, syncType)
}

// SyncBatch delegates to the platform's client.
func (g *Gateway) SyncBatch(ctx context.Context, organizationID uuid.UUID, platform syncdomain.Platform, batch int) (*appsync.BatchOutcome, error) {
	client, ok := g.clients[platform]
	if !ok {
		return nil, ErrConnectorNotConfigured
	}
	return client.SyncBatch(ctx, organizationID, platform, batch)
}

var _ appsync.PlatformClient = (*Gateway)(nil)

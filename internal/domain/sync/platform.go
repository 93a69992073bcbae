package sync

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies an external data platform we sync from.
// The string values are part of the public session schema read by dashboards,
// so they stay lowercase.
type Platform string

const (
	// PlatformShopify represents a Shopify store (orders, products, inventory, customers)
	PlatformShopify Platform = "shopify"
	// PlatformMeta represents Meta ad accounts (ad spend, insights)
	PlatformMeta Platform = "meta"
)

// AllPlatforms returns every supported platform, in the order syncs default to.
func AllPlatforms() []Platform {
	return []Platform{PlatformShopify, PlatformMeta}
}

// IsValid returns true if the platform is supported
func (p Platform) IsValid() bool {
	switch p {
	case PlatformShopify, PlatformMeta:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// HasStages returns true if syncs for this platform run in named entity
// stages (products, inventory, customers, orders). Only Shopify syncs do;
// Meta syncs are a single insight pull.
func (p Platform) HasStages() bool {
	return p == PlatformShopify
}

// ---------------------------------------------------------------------------
// SyncType
// ---------------------------------------------------------------------------

// SyncType describes what kind of sync run a session represents.
type SyncType string

const (
	// SyncTypeInitial is the full first-time backfill for a tenant
	SyncTypeInitial SyncType = "initial"
	// SyncTypeIncremental picks up changes since the last completed run
	SyncTypeIncremental SyncType = "incremental"
)

// String returns the string representation of SyncType
func (t SyncType) String() string {
	return string(t)
}

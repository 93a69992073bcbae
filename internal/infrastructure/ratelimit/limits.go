package ratelimit

import (
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
)

// Limits resolves the hourly token budget per platform. Platforms without an
// explicit override fall back to Default.
type Limits struct {
	Default     int64
	PerPlatform map[syncdomain.Platform]int64
}

// DefaultLimits returns the stock budget of 10k tokens per hour for every
// platform.
func DefaultLimits() Limits {
	return Limits{Default: syncdomain.DefaultHourlyLimit}
}

// For returns the hourly limit for a platform.
func (l Limits) For(platform syncdomain.Platform) int64 {
	if override, ok := l.PerPlatform[platform]; ok && override > 0 {
		return override
	}
	if l.Default > 0 {
		return l.Default
	}
	return syncdomain.DefaultHourlyLimit
}

package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/interfaces/http/dto"
)

// RateLimitHandler exposes read-only bucket snapshots for operators.
type RateLimitHandler struct {
	BaseHandler
	limiter syncdomain.RateLimiter
}

// NewRateLimitHandler creates a new RateLimitHandler
func NewRateLimitHandler(limiter syncdomain.RateLimiter) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter}
}

// RegisterRoutes registers rate limit routes
func (h *RateLimitHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ratelimit/:platform", h.GetBucket)
}

// GetBucket returns the current hourly window for a platform
func (h *RateLimitHandler) GetBucket(c *gin.Context) {
	platform := syncdomain.Platform(c.Param("platform"))

	bucket, err := h.limiter.Bucket(c.Request.Context(), platform, time.Now())
	if errors.Is(err, syncdomain.ErrInvalidPlatform) {
		h.BadRequest(c, "unknown platform: "+string(platform))
		return
	}
	if err != nil {
		h.Internal(c, "failed to read rate limit bucket")
		return
	}

	h.Success(c, dto.RateLimitResponse{
		Platform:    string(bucket.Platform),
		WindowStart: bucket.WindowStart,
		WindowEnd:   bucket.WindowEnd,
		Used:        bucket.Used,
		Limit:       bucket.Limit,
		Remaining:   bucket.Remaining(),
	})
}

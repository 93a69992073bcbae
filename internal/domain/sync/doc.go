// Package sync contains the domain model for adaptive sync orchestration:
// tenant activity profiles that drive sync cadence, per-platform rate-limit
// buckets, and the sync session records that track staged, resumable sync
// progress for each (tenant, platform) pair.
package sync

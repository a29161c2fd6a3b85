package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OrganizationConcurrencyLimiter manages per-organization concurrency limits.
type OrganizationConcurrencyLimiter struct {
	redis        *redis.Client
	maxPerOrg    int
	keyPrefix    string
}

// NewOrganizationConcurrencyLimiter creates a new organization concurrency limiter.
func NewOrganizationConcurrencyLimiter(redis *redis.Client, maxPerOrg int) *OrganizationConcurrencyLimiter {
	return &OrganizationConcurrencyLimiter{
		redis:     redis,
		maxPerOrg: maxPerOrg,
		keyPrefix: "org:concurrency:",
	}
}

// Acquire attempts to acquire a concurrency slot for an organization.
// Returns true if acquired, false if the organization is at capacity.
func (ocl *OrganizationConcurrencyLimiter) Acquire(ctx context.Context, organizationID string, executionID string) (bool, error) {
	key := ocl.keyPrefix + organizationID

	now := float64(time.Now().Unix())

	// Clean up entries for executions that finished more than an hour ago.
	cutoff := now - 3600
	ocl.redis.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", cutoff))

	count, err := ocl.redis.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check organization concurrency: %w", err)
	}

	if int(count) >= ocl.maxPerOrg {
		return false, nil
	}

	_, err = ocl.redis.ZAdd(ctx, key, redis.Z{
		Score:  now,
		Member: executionID,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire concurrency slot: %w", err)
	}

	ocl.redis.Expire(ctx, key, 24*time.Hour)

	return true, nil
}

// Release releases a concurrency slot for an organization.
func (ocl *OrganizationConcurrencyLimiter) Release(ctx context.Context, organizationID string, executionID string) error {
	key := ocl.keyPrefix + organizationID

	_, err := ocl.redis.ZRem(ctx, key, executionID).Result()
	if err != nil {
		return fmt.Errorf("failed to release concurrency slot: %w", err)
	}

	return nil
}

// GetCurrent returns the current concurrency count for an organization.
func (ocl *OrganizationConcurrencyLimiter) GetCurrent(ctx context.Context, organizationID string) (int, error) {
	key := ocl.keyPrefix + organizationID

	now := float64(time.Now().Unix())
	cutoff := now - 3600
	ocl.redis.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", cutoff))

	count, err := ocl.redis.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get organization concurrency: %w", err)
	}

	return int(count), nil
}

// GetMaxPerOrganization returns the maximum concurrent executions per organization.
func (ocl *OrganizationConcurrencyLimiter) GetMaxPerOrganization() int {
	return ocl.maxPerOrg
}

package redis

import (
	"context"
	"time"
)

// ProvisionLock serializes provisioning workflows per email with a SET NX +
// TTL key, so two concurrent requests for the same email cannot both reach
// the identity gateway. The TTL caps how long a crashed workflow can keep an
// email locked.
type ProvisionLock struct {
	client *Client
}

// NewProvisionLock creates a lock backed by the given client.
func NewProvisionLock(client *Client) *ProvisionLock {
	return &ProvisionLock{client: client}
}

func lockKey(email string) string {
	return "provision:" + email
}

// Acquire takes the per-email lock. Returns false when a workflow for this
// email is already in flight.
func (l *ProvisionLock) Acquire(ctx context.Context, email string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(email), time.Now().Format(time.RFC3339), ttl)
}

// Release frees the lock.
func (l *ProvisionLock) Release(ctx context.Context, email string) error {
	return l.client.Delete(ctx, lockKey(email))
}

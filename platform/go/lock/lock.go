// Package lock provides leases that keep a provisioning request driven by a single worker,
// in-process or across replicas.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned when renewing or releasing a lease that expired or was taken over.
var ErrNotHeld = errors.New("lease not held")

// Lease is an acquired lock on a key.
type Lease interface {
	Key() string
	// Renew extends the lease by its original TTL.
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// Locker hands out leases. TryAcquire returns ok=false without error when the key is held.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

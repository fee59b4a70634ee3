// Package ledger implements the append-only block log, its derived
// transaction log, and the operations (validation, reconciliation,
// balance computation, migration) that run over them.
package ledger

import (
	"context"
	"sync"
	"time"

	"empower1.com/ledgerd/internal/ledgererr"
)

// WriteCoordinator is the single process-wide lock guarding every
// mutating operation on the block log and transaction log: appends,
// reconciliation truncation, and migration. Readers never take it.
type WriteCoordinator struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewWriteCoordinator returns a coordinator whose Lock gives up after
// timeout. A non-positive timeout disables the deadline.
func NewWriteCoordinator(timeout time.Duration) *WriteCoordinator {
	return &WriteCoordinator{timeout: timeout}
}

// Lock acquires the write lock, honoring ctx's deadline and the
// coordinator's own timeout, whichever is sooner.
func (c *WriteCoordinator) Lock(ctx context.Context) error {
	acquired := make(chan struct{})
	go func() {
		c.mu.Lock()
		close(acquired)
	}()

	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	select {
	case <-acquired:
		return nil
	case <-waitCtx.Done():
		go func() {
			<-acquired
			c.mu.Unlock()
		}()
		return ledgererr.IOErr(waitCtx.Err(), "timed out waiting for write lock")
	}
}

// Unlock releases the write lock.
func (c *WriteCoordinator) Unlock() {
	c.mu.Unlock()
}

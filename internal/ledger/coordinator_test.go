package ledger_test

import (
	"context"
	"testing"
	"time"

	"empower1.com/ledgerd/internal/ledger"
)

func TestWriteCoordinator_SerializesAccess(t *testing.T) {
	c := ledger.NewWriteCoordinator(time.Second)
	ctx := context.Background()

	assertNil(t, c.Lock(ctx))
	defer c.Unlock()

	done := make(chan struct{})
	go func() {
		c2 := c
		_ = c2.Lock(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second Lock() returned while first holder still held the lock")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWriteCoordinator_TimesOut(t *testing.T) {
	c := ledger.NewWriteCoordinator(20 * time.Millisecond)
	assertNil(t, c.Lock(context.Background()))

	err := c.Lock(context.Background())
	if err == nil {
		t.Fatal("Lock() while held: want timeout error")
	}
	c.Unlock()
}

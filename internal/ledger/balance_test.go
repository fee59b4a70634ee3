package ledger_test

import (
	"path/filepath"
	"testing"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledger"
	"empower1.com/ledgerd/internal/ledgererr"
)

func newTransactionLogWithRows(t *testing.T, dir string, rows []ledger.TransactionRow) *ledger.TransactionLog {
	t.Helper()
	txLog, err := ledger.NewTransactionLog(filepath.Join(dir, "transactions.tsv"))
	assertNil(t, err)
	assertNil(t, txLog.EnsureHeader())
	assertNil(t, txLog.AppendRows(rows))
	return txLog
}

func TestBalanceEngine_ReceivedMinusSent(t *testing.T) {
	dir := t.TempDir()
	txLog := newTransactionLogWithRows(t, dir, []ledger.TransactionRow{
		{Time: 1700000001.0, Sender: "carol", Receiver: "alice", Amount: 10, Method: "tip"},
		{Time: 1700000001.0, Sender: "alice", Receiver: "bob", Amount: 4, Method: "tip"},
	})

	result, err := ledger.NewBalanceEngine(txLog).Balance("alice")
	assertNil(t, err)
	if result.Balance != 6 {
		t.Fatalf("Balance = %v, want 6", result.Balance)
	}
}

func TestBalanceEngine_ReactionMethodExcludedFromSent(t *testing.T) {
	dir := t.TempDir()
	txLog := newTransactionLogWithRows(t, dir, []ledger.TransactionRow{
		{Time: 1700000001.0, Sender: "alice", Receiver: "bob", Amount: 100, Method: core.ReactionMethod},
	})

	result, err := ledger.NewBalanceEngine(txLog).Balance("alice")
	assertNil(t, err)
	if result.Balance != 0 {
		t.Fatalf("Balance = %v, want 0 (reaction sends should not count)", result.Balance)
	}
}

func TestBalanceEngine_UnknownUserIsNotFound(t *testing.T) {
	dir := t.TempDir()
	txLog := newTransactionLogWithRows(t, dir, nil)

	_, err := ledger.NewBalanceEngine(txLog).Balance("nobody")
	kind, ok := ledgererr.KindOf(err)
	if !ok || kind != ledgererr.NotFound {
		t.Fatalf("Balance() for unknown user: got %v, want NotFound", err)
	}
}

func TestBalanceEngine_SurfacesReconciliationDrift(t *testing.T) {
	dir := t.TempDir()
	txLog := newTransactionLogWithRows(t, dir, []ledger.TransactionRow{
		{Time: 1700000001.0, Sender: "alice", Receiver: "bob", Amount: 999, Method: "tip"},
	})

	// The transactions log, not the block log, is authoritative for
	// Balance(): a row that has drifted from the block log is still
	// what /get_balance reports until the Reconciler repairs it.
	result, err := ledger.NewBalanceEngine(txLog).Balance("bob")
	assertNil(t, err)
	if result.Balance != 999 {
		t.Fatalf("Balance = %v, want 999 (read from transactions log, not block log)", result.Balance)
	}
}

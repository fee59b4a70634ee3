package ledger

import (
	"strconv"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// BalanceEngine computes a user's signed balance from the transactions
// log: the sum of everything received minus everything sent, excluding
// sends made with the reaction method (reacting moves no real value).
// Reading from the derived TSV, rather than the block log, is what lets
// a drift between the two surface through /get_balance (spec.md §2,
// §4.7: "Load TSV into a table").
type BalanceEngine struct {
	transactions *TransactionLog
}

// NewBalanceEngine returns a BalanceEngine reading from transactions.
func NewBalanceEngine(transactions *TransactionLog) *BalanceEngine {
	return &BalanceEngine{transactions: transactions}
}

// BalanceResult reports whether user was ever mentioned by a transaction
// at all, distinguishing a legitimate zero balance from "never seen".
type BalanceResult struct {
	Balance float64
	Seen    bool
}

// Balance computes the result for the hex-encoded user identifier used
// to tag Sender/Receiver in transactions.
func (e *BalanceEngine) Balance(user string) (BalanceResult, error) {
	lines, err := e.transactions.Lines()
	if err != nil {
		return BalanceResult{}, err
	}

	var result BalanceResult
	for _, l := range lines {
		row, err := ParseRow(l.Line)
		if err != nil {
			continue
		}
		if row.Receiver == user {
			result.Seen = true
			result.Balance += row.Amount
		}
		if row.Sender == user {
			result.Seen = true
			if row.Method != core.ReactionMethod {
				result.Balance -= row.Amount
			}
		}
	}
	if !result.Seen {
		return BalanceResult{}, ledgererr.NotFoundError("no transactions found for user %q", user)
	}
	return result, nil
}

// coerceAmountString parses a raw textual amount the way the legacy
// transaction log does, defaulting to zero for anything unparseable
// (spec.md §4.7's "tolerate non-numeric garbage" rule).
func coerceAmountString(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

package ledger

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// reconcileMode tracks whether the Reconciler is still comparing existing
// rows against the block log (VALIDATE) or has run past the end of the
// transactions file and is now generating the rows that should follow
// (APPEND). Once a scan switches to append mode it never switches back.
type reconcileMode int

const (
	modeValidate reconcileMode = iota
	modeAppend
)

// Reconciler keeps the derived transactions file in lockstep with the
// transactions recorded in the block log.
type Reconciler struct {
	blocks       *BlockLog
	transactions *TransactionLog
}

// NewReconciler returns a Reconciler pairing a block log with its derived
// transactions log.
func NewReconciler(blocks *BlockLog, transactions *TransactionLog) *Reconciler {
	return &Reconciler{blocks: blocks, transactions: transactions}
}

// ReconcileReport summarizes the outcome of a Run.
type ReconcileReport struct {
	// Valid is true if, after any repair, the transactions file matches
	// the block log exactly.
	Valid bool
	// Message is a human-readable summary, suitable for the HTTP
	// boundary's {"message": ...} response.
	Message string
	// Mismatches lists the rows found to disagree with the block log: the
	// first mismatching row (the scan stops or switches to appending
	// there), or each surplus row past the last block transaction. A row
	// with the wrong number of fields is reported in Message, not here.
	Mismatches []string
	// Appended is the number of rows written because the transactions
	// file was shorter than the block log.
	Appended int
	// Repaired is true if repair truncated and rewrote part of the file.
	Repaired bool
}

var errReconcileStop = errors.New("reconcile: stop")

// Run validates the transactions file against the block log, optionally
// repairing it. Per spec.md §4.6's preamble, a missing or zero-byte
// transactions file is only created and bootstrapped into APPEND mode
// when repair or force is set; without either, it is reported invalid
// and left untouched (nothing is created on disk). Once a file holds at
// least a header, a short, malformed, mismatching, or surplus file is
// only rewritten when repair and force are both set; with repair alone
// it is reported invalid and left untouched, except for the "ran out of
// rows" case, which plain repair is enough to extend (spec.md §4.6: "If
// TSV cursor exhausted: repair → switch to APPEND").
func (r *Reconciler) Run(repair, force bool) (ReconcileReport, error) {
	stat, statErr := os.Stat(r.transactions.Path())
	missing := errors.Is(statErr, os.ErrNotExist)
	if statErr != nil && !missing {
		return ReconcileReport{}, ledgererr.IOErr(statErr, "stat transactions log")
	}
	empty := !missing && stat.Size() == 0

	mode := modeValidate
	if missing || empty {
		if !repair && !force {
			msg := "transactions file not found"
			if empty {
				msg = "transactions file is empty"
			}
			return ReconcileReport{Valid: false, Message: msg}, nil
		}
		if empty {
			if err := os.Remove(r.transactions.Path()); err != nil {
				return ReconcileReport{}, ledgererr.IOErr(err, "remove empty transactions log")
			}
		}
		if _, err := NewTransactionLog(r.transactions.Path()); err != nil {
			return ReconcileReport{}, err
		}
		mode = modeAppend
	}
	if err := r.transactions.EnsureHeader(); err != nil {
		return ReconcileReport{}, err
	}

	lines, err := r.transactions.Lines()
	if err != nil {
		return ReconcileReport{}, err
	}

	var report ReconcileReport
	lineIdx := 0
	var rowsToAppend []TransactionRow
	truncateAt := int64(-1)
	invalidMsg := ""

	walkErr := r.blocks.Iterate(func(b *core.Block) error {
		for _, el := range b.Data {
			if !el.IsTransaction() {
				continue
			}
			expected := TransactionRow{
				Time:     b.Timestamp,
				Sender:   el.Tx.Sender,
				Receiver: el.Tx.Receiver,
				Amount:   float64(el.Tx.Amount),
				Method:   el.Tx.Method,
			}

			if mode == modeAppend {
				rowsToAppend = append(rowsToAppend, expected)
				continue
			}

			if lineIdx >= len(lines) {
				if repair {
					mode = modeAppend
					rowsToAppend = append(rowsToAppend, expected)
					continue
				}
				invalidMsg = fmt.Sprintf("block %d: transactions file is missing data", b.Index)
				return errReconcileStop
			}

			raw := lines[lineIdx]
			fields := strings.Split(raw.Line, "\t")
			if len(fields) != 5 {
				if repair && force {
					truncateAt = raw.Offset
					mode = modeAppend
					lineIdx++
					rowsToAppend = append(rowsToAppend, expected)
					continue
				}
				invalidMsg = fmt.Sprintf("transactions file row %q has %d fields, want 5", raw.Line, len(fields))
				return errReconcileStop
			}

			got, _ := ParseRow(raw.Line)
			if !rowMatches(got, expected) {
				report.Mismatches = append(report.Mismatches, fmt.Sprintf(
					"block %d: transactions file row %q does not match %q", b.Index, raw.Line, EncodeRow(expected)))
				if repair && force {
					truncateAt = raw.Offset
					mode = modeAppend
					lineIdx++
					rowsToAppend = append(rowsToAppend, expected)
					continue
				}
				invalidMsg = fmt.Sprintf("block %d: transactions file row does not match block data", b.Index)
				return errReconcileStop
			}
			lineIdx++
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errReconcileStop) {
		return ReconcileReport{}, walkErr
	}

	if invalidMsg == "" && mode == modeValidate && lineIdx < len(lines) {
		if repair && force {
			truncateAt = lines[lineIdx].Offset
		} else {
			for _, extra := range lines[lineIdx:] {
				report.Mismatches = append(report.Mismatches,
					fmt.Sprintf("transactions file row %q has no matching block transaction", extra.Line))
			}
			invalidMsg = "transactions file has extra data beyond the block log"
		}
	}

	if invalidMsg != "" {
		report.Valid = false
		report.Message = invalidMsg
		return report, nil
	}

	if truncateAt >= 0 {
		if err := r.transactions.TruncateAt(truncateAt); err != nil {
			return ReconcileReport{}, err
		}
		report.Repaired = true
	}
	if len(rowsToAppend) > 0 {
		if err := r.transactions.AppendRows(rowsToAppend); err != nil {
			return ReconcileReport{}, err
		}
		report.Appended = len(rowsToAppend)
	}

	report.Valid = true
	switch {
	case report.Repaired && report.Appended > 0:
		report.Message = fmt.Sprintf("transactions file repaired: truncated at a mismatch and appended %d row(s)", report.Appended)
	case report.Repaired:
		report.Message = "transactions file repaired: truncated at a mismatch"
	case report.Appended > 0:
		report.Message = fmt.Sprintf("transactions file repaired: appended %d missing row(s)", report.Appended)
	default:
		report.Message = "transactions file is valid"
	}
	return report, nil
}

// rowMatches compares a raw transactions-file row against the row
// derived from the block log, treating the literal "None" sentinel as
// matching only a "None" or empty block field, never a real identifier --
// carrying forward a historical quirk from blocks that had "None"
// mistakenly written into sender or receiver.
func rowMatches(got, expected TransactionRow) bool {
	if got.Time != expected.Time {
		return false
	}
	if !fieldMatches(got.Sender, expected.Sender) {
		return false
	}
	if !fieldMatches(got.Receiver, expected.Receiver) {
		return false
	}
	if got.Method != expected.Method {
		return false
	}
	return got.Amount == expected.Amount
}

func fieldMatches(fromFile, fromBlock string) bool {
	fileIsNone := fromFile == core.NoneSender
	blockIsNone := fromBlock == "" || fromBlock == core.NoneSender
	if fileIsNone || blockIsNone {
		return fileIsNone == blockIsNone
	}
	return fromFile == fromBlock
}

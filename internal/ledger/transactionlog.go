package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// TransactionRow is one line of the derived transactions file: a flat,
// tab-separated rendering of a Transaction plus the timestamp of the
// block it came from.
type TransactionRow struct {
	Time     float64
	Sender   string
	Receiver string
	Amount   float64
	Method   string
}

// TransactionLog is the derived, tab-separated-values file reconciled
// against the block log by the Reconciler.
type TransactionLog struct {
	path string
}

// NewTransactionLog returns a TransactionLog backed by path, creating an
// empty file if one does not already exist.
func NewTransactionLog(path string) (*TransactionLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ledgererr.IOErr(err, "open transactions log %s", path)
	}
	f.Close()
	return &TransactionLog{path: path}, nil
}

// Path returns the file backing this log.
func (l *TransactionLog) Path() string { return l.path }

const transactionHeader = "Time\tSender\tReceiver\tAmount\tMethod"

// EncodeRow renders a row as a tab-separated line, without trailing
// newline. An empty sender/receiver is written as the literal text
// "None", matching the legacy sentinel this log tolerates on read.
func EncodeRow(r TransactionRow) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
		formatTime(r.Time), noneOr(r.Sender), noneOr(r.Receiver), formatAmount(r.Amount), r.Method)
}

func formatTime(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func noneOr(s string) string {
	if s == "" {
		return core.NoneSender
	}
	return s
}

func formatAmount(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// ParseRow decodes one tab-separated line. Time and Amount fields that
// fail to parse as a number are coerced to zero rather than rejected,
// matching the tolerance BalanceEngine applies to legacy data (spec.md
// §4.7's "tolerate non-numeric garbage" rule, extended to Time since both
// fields share the same legacy coercion history).
func ParseRow(line string) (TransactionRow, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return TransactionRow{}, ledgererr.ValidationError("transaction row has %d fields, want 5: %q", len(fields), line)
	}
	return TransactionRow{
		Time:     coerceAmountString(fields[0]),
		Sender:   fields[1],
		Receiver: fields[2],
		Amount:   coerceAmountString(fields[3]),
		Method:   fields[4],
	}, nil
}

// EnsureHeader writes the header line if the file is currently empty.
func (l *TransactionLog) EnsureHeader() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return ledgererr.IOErr(err, "stat transactions log")
	}
	if info.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY, 0o644)
	if err != nil {
		return ledgererr.IOErr(err, "open transactions log for header write")
	}
	defer f.Close()
	if _, err := f.WriteString(transactionHeader + "\n"); err != nil {
		return ledgererr.IOErr(err, "write transactions header")
	}
	return f.Sync()
}

// AppendRows appends rows to the end of the file. Callers must hold the
// WriteCoordinator's lock.
func (l *TransactionLog) AppendRows(rows []TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ledgererr.IOErr(err, "open transactions log for append")
	}
	defer f.Close()

	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(EncodeRow(r))
		sb.WriteByte('\n')
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return ledgererr.IOErr(err, "append transaction rows")
	}
	return f.Sync()
}

// Lines returns, in order, the byte offset at which each line begins and
// its content (without the trailing newline), skipping the header line
// if present. This mirrors the original implementation's
// line_generator(), which the Reconciler needs for byte-accurate
// truncation.
func (l *TransactionLog) Lines() ([]LinePosition, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, ledgererr.IOErr(err, "open transactions log")
	}
	defer f.Close()

	var out []LinePosition
	reader := bufio.NewReader(f)
	var offset int64
	first := true
	for {
		line, err := reader.ReadString('\n')
		lineLen := int64(len(line))
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed != "" {
			if !(first && trimmed == transactionHeader) {
				out = append(out, LinePosition{Offset: offset, Line: trimmed})
			}
		}
		first = false
		offset += lineLen
		if err != nil {
			break
		}
	}
	return out, nil
}

// LinePosition pairs a transactions-file line with the byte offset at
// which it starts, for Reconciler truncation.
type LinePosition struct {
	Offset int64
	Line   string
}

// TruncateAt discards everything in the file from byte offset onward.
// Callers must hold the WriteCoordinator's lock.
func (l *TransactionLog) TruncateAt(offset int64) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY, 0o644)
	if err != nil {
		return ledgererr.IOErr(err, "open transactions log for truncation")
	}
	defer f.Close()
	if err := f.Truncate(offset); err != nil {
		return ledgererr.IOErr(err, "truncate transactions log")
	}
	return f.Sync()
}

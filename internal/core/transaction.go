package core

import (
	"fmt"
	"strings"
)

// ReactionMethod is the transaction method name excluded from the spent
// side of a balance calculation: reacting to content moves no real value.
const ReactionMethod = "reaction"

// NoneSender is the historical sentinel some legacy blocks wrote into
// Sender or Receiver instead of leaving the field empty. It is carried
// forward so the reconciler can recognize it without treating it as a
// real identifier.
const NoneSender = "None"

// Transaction is a single transfer recorded inside a block.
type Transaction struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   int32  `json:"amount"`
	Method   string `json:"method"`
}

// String renders a Transaction the way the canonical block preimage
// expects it: a Python-dataclass-style repr. This is never used for JSON
// serialization, only for hashing, and must not change once blocks have
// been mined against it.
func (t Transaction) String() string {
	return fmt.Sprintf("Transaction(sender=%s, receiver=%s, amount=%d, method=%s)",
		pyStr(t.Sender), pyStr(t.Receiver), t.Amount, pyStr(t.Method))
}

// BlockData is the ordered payload of a block: a mix of free-form notes
// (used by the genesis block) and transactions.
type BlockData []BlockDataElement

// BlockDataElement is either a literal string note or a Transaction.
// Exactly one of Note or Tx is set.
type BlockDataElement struct {
	Note string
	Tx   *Transaction
}

// NoteElement builds a BlockDataElement wrapping a plain string note.
func NoteElement(note string) BlockDataElement {
	return BlockDataElement{Note: note}
}

// TxElement builds a BlockDataElement wrapping a transaction.
func TxElement(tx Transaction) BlockDataElement {
	return BlockDataElement{Tx: &tx}
}

// IsTransaction reports whether this element carries a transaction rather
// than a note.
func (e BlockDataElement) IsTransaction() bool {
	return e.Tx != nil
}

func pyStr(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

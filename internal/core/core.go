// Package core contains the fundamental data structures of the ledger --
// Block, Transaction, and BlockData -- along with the hashing and
// canonical-rendering rules that link one block to the next.
package core

package core

import (
	"strconv"
	"strings"
)

// Block is one append-only entry in the ledger. Hash commits to every
// other field via the canonical preimage produced by Preimage(); PrevHash
// links it to the block written immediately before it.
type Block struct {
	Index     int64     `json:"index"`
	Timestamp float64   `json:"timestamp"`
	Data      BlockData `json:"data"`
	PrevHash  string    `json:"previous_block_hash"`
	Nonce     int64     `json:"nonce"`
	Hash      string    `json:"block_hash"`
}

// NewBlock builds a block with its Hash left unset. SetHash or Mine must
// be called before the block is appended.
func NewBlock(index int64, timestamp float64, data BlockData, prevHash string) *Block {
	return &Block{
		Index:     index,
		Timestamp: timestamp,
		Data:      data,
		PrevHash:  prevHash,
	}
}

// Preimage renders the exact string the block's hash is computed over:
// index, timestamp, data, previous hash, and nonce concatenated with no
// separators. This rendering is pinned -- see block_test.go's fixture --
// because any change to it invalidates every hash computed so far.
func (b *Block) Preimage() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(b.Index, 10))
	sb.WriteString(formatTimestamp(b.Timestamp))
	sb.WriteString(renderBlockData(b.Data))
	sb.WriteString(b.PrevHash)
	sb.WriteString(strconv.FormatInt(b.Nonce, 10))
	return sb.String()
}

// CalculateHash computes, but does not store, the hash of the block's
// current fields.
func (b *Block) CalculateHash() string {
	return Sha256Hex(b.Preimage())
}

// SetHash recomputes and stores the block's hash from its current fields.
func (b *Block) SetHash() {
	b.Hash = b.CalculateHash()
}

// Mine increases Nonce until the block's hash has at least difficulty
// leading zero hex digits, then stores the resulting hash. difficulty
// of zero mines instantly, matching a default-off proof-of-work setting.
func (b *Block) Mine(difficulty int) {
	prefix := strings.Repeat("0", difficulty)
	for {
		h := b.CalculateHash()
		if strings.HasPrefix(h, prefix) {
			b.Hash = h
			return
		}
		b.Nonce++
	}
}

func formatTimestamp(ts float64) string {
	s := strconv.FormatFloat(ts, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func renderBlockData(data BlockData) string {
	elements := make([]string, len(data))
	for i, e := range data {
		if e.IsTransaction() {
			elements[i] = "{'transaction': " + e.Tx.String() + "}"
		} else {
			elements[i] = pyStr(e.Note)
		}
	}
	return "[" + strings.Join(elements, ", ") + "]"
}

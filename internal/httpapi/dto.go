package httpapi

import (
	"empower1.com/ledgerd/internal/core"
)

// blockDTO is the JSON shape returned to HTTP clients for a single block.
type blockDTO struct {
	Index     int64   `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Data      []any   `json:"data"`
	PrevHash  string  `json:"previous_block_hash"`
	Nonce     int64   `json:"nonce"`
	Hash      string  `json:"block_hash"`
}

func toBlockDTO(b *core.Block) blockDTO {
	data := make([]any, len(b.Data))
	for i, e := range b.Data {
		if e.IsTransaction() {
			data[i] = map[string]any{"transaction": e.Tx}
		} else {
			data[i] = e.Note
		}
	}
	return blockDTO{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		Data:      data,
		PrevHash:  b.PrevHash,
		Nonce:     b.Nonce,
		Hash:      b.Hash,
	}
}

// chainResponse is the body of GET /get_chain: spec.md §6 documents
// {length, chain}.
type chainResponse struct {
	Length int        `json:"length"`
	Chain  []blockDTO `json:"chain"`
}

// addBlockResponse is the body of a successful POST /add_block: spec.md
// §6 documents {message, block}.
type addBlockResponse struct {
	Message string   `json:"message"`
	Block   blockDTO `json:"block"`
}

// lastBlockResponse is the body of a successful GET /get_last_block:
// spec.md §6 documents {block}.
type lastBlockResponse struct {
	Block blockDTO `json:"block"`
}

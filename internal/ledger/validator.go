package ledger

import (
	"fmt"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// ChainValidator streams through a BlockLog once, confirming each block's
// stored hash matches its recomputed hash and that each block correctly
// links to the one before it.
type ChainValidator struct{}

// NewChainValidator returns a ChainValidator.
func NewChainValidator() *ChainValidator { return &ChainValidator{} }

// Validate walks log in order and returns a descriptive Integrity error
// on the first broken hash or link. A missing or empty log is invalid
// (spec.md §4.5's edge case); a log holding only the genesis block is
// valid iff that block's hash matches its own canonical preimage.
func (v *ChainValidator) Validate(log *BlockLog) error {
	var prev *core.Block

	err := log.Iterate(func(b *core.Block) error {
		if got, want := b.CalculateHash(), b.Hash; got != want {
			return ledgererr.IntegrityError(nil,
				"block %d: stored hash %q does not match recomputed hash %q", b.Index, want, got)
		}
		if prev != nil {
			if b.PrevHash != prev.Hash {
				return ledgererr.IntegrityError(nil,
					"block %d: previous_block_hash %q does not match block %d's hash %q",
					b.Index, b.PrevHash, prev.Index, prev.Hash)
			}
		}
		prev = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("chain validation failed: %w", err)
	}
	if prev == nil {
		return fmt.Errorf("chain validation failed: %w",
			ledgererr.IntegrityError(nil, "block log is empty"))
	}
	return nil
}

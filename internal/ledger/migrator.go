package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// legacyWireBlock is the older, pre-canonical on-disk block shape: the
// same fields, but data elements may be plain dicts instead of the
// {"transaction": {...}} wrapper, and unknown fields are not rejected.
type legacyWireBlock struct {
	Index             int64             `json:"index"`
	Timestamp         float64           `json:"timestamp"`
	Data              []json.RawMessage `json:"data"`
	PreviousBlockHash string            `json:"previous_block_hash"`
	Nonce             int64             `json:"nonce"`
	BlockHash         string            `json:"block_hash"`
}

// Migrator re-derives every block's hash under the current canonical
// preimage rules, reading a legacy-format file and writing a fresh one.
type Migrator struct{}

// NewMigrator returns a Migrator.
func NewMigrator() *Migrator { return &Migrator{} }

// MigrateReport summarizes a completed migration.
type MigrateReport struct {
	BackupPath   string
	BlocksRead   int
	BlocksSkipped int
}

// Run backs up the block log at path to "<name>_old<ext>" and writes a
// freshly re-hashed chain to path. The first new block's previous hash is
// bootstrapped from the legacy block's own (old-format) hash, since there
// is no earlier new-format block to link to. Malformed legacy lines are
// skipped, not fatal, matching the original implementation. Callers must
// hold the WriteCoordinator's lock.
func (m *Migrator) Run(path string) (MigrateReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return MigrateReport{}, ledgererr.NotFoundError("block log %s does not exist", path)
	}
	if info.Size() == 0 {
		return MigrateReport{}, ledgererr.ValidationError("block log %s is empty, nothing to migrate", path)
	}

	ext := filepath.Ext(path)
	backupPath := strings.TrimSuffix(path, ext) + "_old" + ext
	if err := os.Rename(path, backupPath); err != nil {
		return MigrateReport{}, ledgererr.IOErr(err, "back up block log to %s", backupPath)
	}

	report := MigrateReport{BackupPath: backupPath}

	if err := m.rewrite(backupPath, path, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Migrator) rewrite(backupPath, newPath string, report *MigrateReport) error {
	in, err := os.Open(backupPath)
	if err != nil {
		return ledgererr.IOErr(err, "open backup block log")
	}
	defer in.Close()

	out, err := os.OpenFile(newPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ledgererr.IOErr(err, "create new block log")
	}
	defer out.Close()

	var previousHash string
	var firstBlockSeen bool

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.BlocksRead++

		legacy, data, err := parseLegacyLine(line)
		if err != nil {
			report.BlocksSkipped++
			continue
		}

		var prevHash string
		if !firstBlockSeen {
			// Bootstrap: the first new-format block links back to the
			// legacy block's own hash, since no earlier new-format block
			// exists to link to.
			prevHash = legacy.BlockHash
			firstBlockSeen = true
		} else {
			prevHash = previousHash
		}

		newBlock := core.NewBlock(legacy.Index, legacy.Timestamp, data, prevHash)
		newBlock.SetHash()

		encoded, err := EncodeLine(newBlock)
		if err != nil {
			return ledgererr.ValidationError("encode migrated block %d: %v", legacy.Index, err)
		}
		if _, err := out.WriteString(encoded + "\n"); err != nil {
			return ledgererr.IOErr(err, "write migrated block %d", legacy.Index)
		}
		previousHash = newBlock.Hash
	}
	if err := scanner.Err(); err != nil {
		return ledgererr.IOErr(err, "scan backup block log")
	}
	return out.Sync()
}

func parseLegacyLine(line string) (*legacyWireBlock, core.BlockData, error) {
	var legacy legacyWireBlock
	if err := json.Unmarshal([]byte(line), &legacy); err != nil {
		return nil, nil, err
	}
	data, err := decodeLegacyBlockData(legacy.Data)
	if err != nil {
		return nil, nil, err
	}
	return &legacy, data, nil
}

// decodeLegacyBlockData accepts both the current {"transaction": {...}}
// wrapper and the older bare-dict transaction form the legacy migrator
// had to tolerate.
func decodeLegacyBlockData(raw []json.RawMessage) (core.BlockData, error) {
	data := make(core.BlockData, len(raw))
	for i, r := range raw {
		var note string
		if err := json.Unmarshal(r, &note); err == nil {
			data[i] = core.NoteElement(note)
			continue
		}

		var wrapper wireTxWrapper
		if err := json.Unmarshal(r, &wrapper); err == nil && wrapper.Transaction != (core.Transaction{}) {
			data[i] = core.TxElement(wrapper.Transaction)
			continue
		}

		var bare core.Transaction
		if err := json.Unmarshal(r, &bare); err != nil {
			return nil, err
		}
		data[i] = core.TxElement(bare)
	}
	return data, nil
}

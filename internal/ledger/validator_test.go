package ledger_test

import (
	"path/filepath"
	"testing"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledger"
	"empower1.com/ledgerd/internal/ledgererr"
)

func TestChainValidator_ValidChain(t *testing.T) {
	dir := t.TempDir()
	log := newGenesisChain(t, dir)
	last, err := log.GetLastBlock()
	assertNil(t, err)

	b1 := core.NewBlock(1, 1700000001.0, core.BlockData{core.NoteElement("second")}, last.Hash)
	b1.SetHash()
	assertNil(t, log.Append(b1))

	assertNil(t, ledger.NewChainValidator().Validate(log))
}

func TestChainValidator_BrokenLink(t *testing.T) {
	dir := t.TempDir()
	log := newGenesisChain(t, dir)

	b1 := core.NewBlock(1, 1700000001.0, core.BlockData{core.NoteElement("second")}, "wrong-hash")
	b1.SetHash()
	assertNil(t, log.Append(b1))

	err := ledger.NewChainValidator().Validate(log)
	kind, ok := ledgererr.KindOf(err)
	if !ok || kind != ledgererr.Integrity {
		t.Fatalf("Validate() = %v, want Integrity error", err)
	}
}

func TestChainValidator_EmptyLogIsInvalid(t *testing.T) {
	dir := t.TempDir()
	log, err := ledger.NewBlockLog(filepath.Join(dir, "blockchain.json"))
	assertNil(t, err)

	err = ledger.NewChainValidator().Validate(log)
	kind, ok := ledgererr.KindOf(err)
	if !ok || kind != ledgererr.Integrity {
		t.Fatalf("Validate() on empty log = %v, want Integrity error", err)
	}
}

func TestChainValidator_TamperedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockchain.json")
	log, err := ledger.NewBlockLog(path)
	assertNil(t, err)

	genesis := core.NewBlock(0, 1700000000.0, core.BlockData{core.NoteElement(ledger.GenesisNote)}, "")
	genesis.SetHash()
	genesis.Hash = "0000deadbeef"
	assertNil(t, log.Append(genesis))

	err = ledger.NewChainValidator().Validate(log)
	kind, ok := ledgererr.KindOf(err)
	if !ok || kind != ledgererr.Integrity {
		t.Fatalf("Validate() = %v, want Integrity error", err)
	}
}

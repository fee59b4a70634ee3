package ledger_test

import (
	"errors"
	"path/filepath"
	"testing"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledger"
	"empower1.com/ledgerd/internal/ledgererr"
)

func assertNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newGenesisChain(t *testing.T, dir string) *ledger.BlockLog {
	t.Helper()
	log, err := ledger.NewBlockLog(filepath.Join(dir, "blockchain.json"))
	assertNil(t, err)

	genesis := core.NewBlock(0, 1700000000.0, core.BlockData{core.NoteElement(ledger.GenesisNote)}, "")
	genesis.SetHash()
	assertNil(t, log.Append(genesis))
	return log
}

func TestBlockLog_AppendAndGetLastBlock(t *testing.T) {
	dir := t.TempDir()
	log := newGenesisChain(t, dir)

	last, err := log.GetLastBlock()
	assertNil(t, err)
	if last.Index != 0 {
		t.Fatalf("Index = %d, want 0", last.Index)
	}

	b1 := core.NewBlock(1, 1700000001.0, core.BlockData{
		core.TxElement(core.Transaction{Sender: "alice", Receiver: "bob", Amount: 3, Method: "tip"}),
	}, last.Hash)
	b1.SetHash()
	assertNil(t, log.Append(b1))

	last, err = log.GetLastBlock()
	assertNil(t, err)
	if last.Index != 1 || last.PrevHash != genesisHashOf(t, log) {
		t.Fatalf("unexpected last block: %+v", last)
	}
}

func genesisHashOf(t *testing.T, log *ledger.BlockLog) string {
	t.Helper()
	var first *core.Block
	err := log.Iterate(func(b *core.Block) error {
		if first == nil {
			first = b
		}
		return nil
	})
	assertNil(t, err)
	return first.Hash
}

func TestBlockLog_Count(t *testing.T) {
	dir := t.TempDir()
	log := newGenesisChain(t, dir)

	n, err := log.Count()
	assertNil(t, err)
	if n != 1 {
		t.Fatalf("Count() = %d, want 1 (genesis only)", n)
	}

	last, err := log.GetLastBlock()
	assertNil(t, err)
	b1 := core.NewBlock(1, 1700000001.0, core.BlockData{core.NoteElement("hi")}, last.Hash)
	b1.SetHash()
	assertNil(t, log.Append(b1))

	n, err = log.Count()
	assertNil(t, err)
	if n != 2 {
		t.Fatalf("Count() = %d, want 2 after one append", n)
	}
}

func TestBlockLog_GetLastBlock_EmptyLogIsNotFound(t *testing.T) {
	dir := t.TempDir()
	log, err := ledger.NewBlockLog(filepath.Join(dir, "blockchain.json"))
	assertNil(t, err)

	_, err = log.GetLastBlock()
	kind, ok := ledgererr.KindOf(err)
	if !ok || kind != ledgererr.NotFound {
		t.Fatalf("GetLastBlock() on empty log: got %v, want NotFound", err)
	}
}

func TestBlockLog_Iterate_StopsOnError(t *testing.T) {
	dir := t.TempDir()
	log := newGenesisChain(t, dir)

	sentinel := errors.New("stop")
	err := log.Iterate(func(b *core.Block) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("Iterate() = %v, want sentinel", err)
	}
}

func TestParseLine_RejectsUnknownTopLevelField(t *testing.T) {
	line := `{"index":0,"timestamp":1.0,"data":["x"],"previous_block_hash":"0","nonce":0,"block_hash":"h","extra":true}`
	if _, err := ledger.ParseLine(line); err == nil {
		t.Fatal("ParseLine() with unknown top-level field: want error, got nil")
	}
}

func TestParseLine_RejectsUnknownTransactionField(t *testing.T) {
	line := `{"index":0,"timestamp":1.0,"data":[{"transaction":{"sender":"a","receiver":"b","amount":1,"method":"m","foo":"bar"}}],` +
		`"previous_block_hash":"0","nonce":0,"block_hash":"h"}`
	if _, err := ledger.ParseLine(line); err == nil {
		t.Fatal("ParseLine() with unknown transaction field: want error, got nil")
	}
}

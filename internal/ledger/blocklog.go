package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledgererr"
)

// GenesisNote is the fixed first line of every chain, carried over
// verbatim from the system this ledger replaces.
const GenesisNote = "Jiraph complained about not being able to access nn block so I called Jiraph a scraper"

// wireBlock is the on-disk JSON shape of a block: Data is a raw array
// mixing string notes and {"transaction": {...}} objects, which core.Block
// cannot unmarshal directly without help.
type wireBlock struct {
	Index             int64             `json:"index"`
	Timestamp         float64           `json:"timestamp"`
	Data              []json.RawMessage `json:"data"`
	PreviousBlockHash string            `json:"previous_block_hash"`
	Nonce             int64             `json:"nonce"`
	BlockHash         string            `json:"block_hash"`
}

type wireTxWrapper struct {
	Transaction core.Transaction `json:"transaction"`
}

// BlockLog is the append-only, newline-delimited JSON file holding every
// block. It is a thin file wrapper: callers coordinate mutating access
// through a WriteCoordinator.
type BlockLog struct {
	path string
}

// NewBlockLog returns a BlockLog backed by path. The file is created
// empty if it does not already exist.
func NewBlockLog(path string) (*BlockLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ledgererr.IOErr(err, "open block log %s", path)
	}
	f.Close()
	return &BlockLog{path: path}, nil
}

// Path returns the file backing this log.
func (l *BlockLog) Path() string { return l.path }

// EnsureGenesis writes the fixed genesis block (index 0, previous hash
// the literal "0") if the log is empty, and is a no-op otherwise. It
// returns the genesis block it wrote, or the log's last block if the log
// already held blocks. Callers must hold the
// WriteCoordinator's lock when the log may be empty.
func (l *BlockLog) EnsureGenesis() (*core.Block, error) {
	last, err := l.GetLastBlock()
	if err == nil {
		return last, nil
	}
	if kind, ok := ledgererr.KindOf(err); !ok || kind != ledgererr.NotFound {
		return nil, err
	}

	genesis := core.NewBlock(0, float64(time.Now().UnixNano())/1e9, core.BlockData{core.NoteElement(GenesisNote)}, "0")
	genesis.SetHash()
	if err := l.Append(genesis); err != nil {
		return nil, err
	}
	return genesis, nil
}

func encodeBlockData(data core.BlockData) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(data))
	for i, e := range data {
		if e.IsTransaction() {
			raw, err := json.Marshal(wireTxWrapper{Transaction: *e.Tx})
			if err != nil {
				return nil, err
			}
			out[i] = raw
		} else {
			raw, err := json.Marshal(e.Note)
			if err != nil {
				return nil, err
			}
			out[i] = raw
		}
	}
	return out, nil
}

func decodeBlockData(raw []json.RawMessage) (core.BlockData, error) {
	data := make(core.BlockData, len(raw))
	for i, r := range raw {
		var note string
		if err := json.Unmarshal(r, &note); err == nil {
			data[i] = core.NoteElement(note)
			continue
		}
		var wrapper wireTxWrapper
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("block data element %d is neither a string nor a transaction: %w", i, err)
		}
		data[i] = core.TxElement(wrapper.Transaction)
	}
	return data, nil
}

func toWire(b *core.Block) (*wireBlock, error) {
	data, err := encodeBlockData(b.Data)
	if err != nil {
		return nil, err
	}
	return &wireBlock{
		Index:             b.Index,
		Timestamp:         b.Timestamp,
		Data:              data,
		PreviousBlockHash: b.PrevHash,
		Nonce:             b.Nonce,
		BlockHash:         b.Hash,
	}, nil
}

func fromWire(w *wireBlock) (*core.Block, error) {
	data, err := decodeBlockData(w.Data)
	if err != nil {
		return nil, err
	}
	return &core.Block{
		Index:     w.Index,
		Timestamp: w.Timestamp,
		Data:      data,
		PrevHash:  w.PreviousBlockHash,
		Nonce:     w.Nonce,
		Hash:      w.BlockHash,
	}, nil
}

// ParseLine decodes a single block-log line into a Block, rejecting any
// field this schema does not declare (spec.md §4.3's load_block
// contract) at every level, including inside a transaction element.
func ParseLine(line string) (*core.Block, error) {
	var w wireBlock
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	return fromWire(&w)
}

// EncodeLine encodes a Block into its block-log line, without the
// trailing newline.
func EncodeLine(b *core.Block) (string, error) {
	w, err := toWire(b)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Append writes block as the next line of the log and fsyncs the file.
// Callers must hold the WriteCoordinator's lock.
func (l *BlockLog) Append(block *core.Block) error {
	line, err := EncodeLine(block)
	if err != nil {
		return ledgererr.ValidationError("encode block %d: %v", block.Index, err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ledgererr.IOErr(err, "open block log for append")
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return ledgererr.IOErr(err, "write block %d", block.Index)
	}
	return f.Sync()
}

// Iterate calls fn once per block in order, stopping (and returning fn's
// error) on the first error fn returns.
func (l *BlockLog) Iterate(fn func(*core.Block) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return ledgererr.IOErr(err, "open block log")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		block, err := ParseLine(line)
		if err != nil {
			return ledgererr.IntegrityError(err, "parse block line")
		}
		if err := fn(block); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Count returns the number of blocks in the log, genesis included,
// matching spec.md §4.3's count() operation.
func (l *BlockLog) Count() (int, error) {
	n := 0
	if err := l.Iterate(func(*core.Block) error {
		n++
		return nil
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// GetLastBlock returns the most recently appended block by scanning
// backward from the end of the file, avoiding a full read for a large
// log. Returns ledgererr.NotFound if the log is empty.
func (l *BlockLog) GetLastBlock() (*core.Block, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, ledgererr.IOErr(err, "open block log")
	}
	defer f.Close()

	line, err := lastNonEmptyLine(f)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ledgererr.NotFoundError("block log is empty")
		}
		return nil, ledgererr.IOErr(err, "scan block log from end")
	}
	block, err := ParseLine(line)
	if err != nil {
		return nil, ledgererr.IntegrityError(err, "parse last block line")
	}
	return block, nil
}

// lastNonEmptyLine walks backward from the end of f one byte at a time,
// mirroring the original implementation's reverse newline scan, and
// returns the last line with content.
func lastNonEmptyLine(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	end := info.Size()

	buf := make([]byte, 1)
	for end > 0 {
		// Trim trailing newlines so repeated blank lines at the end of
		// the file don't produce an empty result.
		if _, err := f.ReadAt(buf, end-1); err != nil {
			return "", err
		}
		if buf[0] != '\n' {
			break
		}
		end--
	}
	if end == 0 {
		return "", io.EOF
	}

	start := end - 1
	for start > 0 {
		if _, err := f.ReadAt(buf, start-1); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			break
		}
		start--
	}

	return readRange(f, start, end)
}

func readRange(f *os.File, start, end int64) (string, error) {
	if end <= start {
		return "", nil
	}
	buf := make([]byte, end-start)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", err
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

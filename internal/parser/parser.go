// Package parser turns raw blockchain traces into cleaned event logs.
//
// Three inputs are joined: raw parity traces (one row per internal call),
// a contract lookup flagging which addresses are contracts, and a block
// times table. Every kept trace becomes one event whose case is its
// transaction, whose position is block*padding+row, and whose category
// records whether sender and receiver are contracts or users.
package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/chainminer/internal/models"
)

// Format represents the format of a raw trace file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatCSV represents flattened traces (.csv) with dotted column names
	FormatCSV
	// FormatJSONL represents one JSON trace object per line (.jsonl, .ndjson, .json)
	FormatJSONL
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// DetectFormat detects the trace format based on file extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	default:
		return FormatUnknown
	}
}

// TraceReader reads raw traces from a stream.
type TraceReader interface {
	ReadTraces(r io.Reader) ([]Trace, error)
}

// NewTraceReader creates a reader for the specified format
func NewTraceReader(format Format) (TraceReader, error) {
	switch format {
	case FormatCSV:
		return &CSVTraceReader{}, nil
	case FormatJSONL:
		return &JSONTraceReader{}, nil
	default:
		return nil, fmt.Errorf("unsupported trace format: %v", format)
	}
}

// TraceTypeCall is the only trace type that becomes an event; create and
// suicide traces are dropped.
const TraceTypeCall = "call"

// DefaultBlockPadding leaves room for a billion traces per block.
const DefaultBlockPadding int64 = 1_000_000_000

// Trace is one row of a raw trace dump.
type Trace struct {
	Row             int // zero-based row index within its file
	BlockNumber     int64
	TransactionHash string
	From            string
	To              string
	Type            string
}

// Contract is one contract lookup entry.
type Contract struct {
	Address string
	IsERC20 bool
}

// ContractLookup maps normalized addresses to contract entries.
type ContractLookup map[string]Contract

// IsContract reports whether address belongs to a known contract.
func (c ContractLookup) IsContract(address string) bool {
	_, ok := c[NormalizeAddress(address)]
	return ok
}

// BlockTimes maps block numbers to unix timestamps.
type BlockTimes map[int64]int64

// Address is one row of the address lookup table.
type Address struct {
	ID         int64
	Address    string
	IsContract bool
	IsERC20    bool
}

// TransactionRef maps a transaction hash to its dense case id.
type TransactionRef struct {
	ID   models.CaseID
	Hash string
}

// Options configures Parse.
type Options struct {
	// BlockPadding multiplies block numbers to build positions; it must
	// exceed the number of traces in any single file.
	BlockPadding int64
}

// Result holds the outputs of parsing one trace file.
type Result struct {
	Events       []models.Event
	Addresses    []Address
	Transactions []TransactionRef

	// NonCall counts traces dropped because their type is not "call".
	NonCall int
	// MissingBlockTime counts call traces dropped for lack of a block time.
	MissingBlockTime int
}

// ErrPositionOverflow is returned when block*padding+row does not fit in int64
// or a row index reaches the padding.
var ErrPositionOverflow = errors.New("position overflow")

// Parse joins traces with the contract lookup and block times.
//
// Transaction hashes are assigned dense case ids in first-seen order over all
// traces. Addresses get dense ids in first-seen order, followed by contracts
// that never appear in the traces. Events are returned in position order.
func Parse(traces []Trace, contracts ContractLookup, blockTimes BlockTimes, opts Options) (*Result, error) {
	padding := opts.BlockPadding
	if padding <= 0 {
		padding = DefaultBlockPadding
	}

	res := &Result{Events: []models.Event{}}

	addrIDs := make(map[string]int64)
	addAddress := func(raw string) {
		addr := NormalizeAddress(raw)
		if addr == "" {
			return
		}
		if _, ok := addrIDs[addr]; ok {
			return
		}
		c, isContract := contracts[addr]
		addrIDs[addr] = int64(len(res.Addresses))
		res.Addresses = append(res.Addresses, Address{
			ID:         int64(len(res.Addresses)),
			Address:    addr,
			IsContract: isContract,
			IsERC20:    c.IsERC20,
		})
	}

	txIDs := make(map[string]models.CaseID)
	for _, tr := range traces {
		addAddress(tr.From)
		addAddress(tr.To)
		if _, ok := txIDs[tr.TransactionHash]; !ok {
			id := models.CaseID(len(res.Transactions))
			txIDs[tr.TransactionHash] = id
			res.Transactions = append(res.Transactions, TransactionRef{ID: id, Hash: tr.TransactionHash})
		}
	}
	for _, addr := range sortedKeys(contracts) {
		addAddress(addr)
	}

	for _, tr := range traces {
		if tr.Type != TraceTypeCall {
			res.NonCall++
			continue
		}
		ts, ok := blockTimes[tr.BlockNumber]
		if !ok {
			res.MissingBlockTime++
			continue
		}

		pos, err := position(tr.BlockNumber, int64(tr.Row), padding)
		if err != nil {
			return nil, fmt.Errorf("trace at row %d: %w", tr.Row, err)
		}

		res.Events = append(res.Events, models.Event{
			CaseID:    txIDs[tr.TransactionHash],
			Position:  pos,
			Category:  models.CategoryFor(contracts.IsContract(tr.From), contracts.IsContract(tr.To)),
			Timestamp: ts,
		})
	}

	models.SortEventsByPosition(res.Events)
	return res, nil
}

func position(block, row, padding int64) (int64, error) {
	if row < 0 || row >= padding {
		return 0, fmt.Errorf("%w: row %d does not fit block padding %d", ErrPositionOverflow, row, padding)
	}
	if block < 0 || block > (math.MaxInt64-row)/padding {
		return 0, fmt.Errorf("%w: block %d with padding %d", ErrPositionOverflow, block, padding)
	}
	return block*padding + row, nil
}

// ParseFile reads the traces in path (format detected from its extension)
// and parses them. A file whose columns do not match the raw trace pattern
// returns an error wrapping eventlog.ErrColumnsMismatch so callers can skip it.
func ParseFile(path string, contracts ContractLookup, blockTimes BlockTimes, opts Options) (*Result, error) {
	reader, err := NewTraceReader(DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	traces, err := reader.ReadTraces(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return Parse(traces, contracts, blockTimes, opts)
}

// Infix returns the file name without directory and extension, used to name
// the ps_<infix>_* outputs.
func Infix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

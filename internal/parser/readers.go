package parser

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/chainminer/internal/eventlog"
)

// Column patterns of the three parser inputs.
var (
	TraceColumns     = []string{"blockNumber", "transactionHash", "action.from", "action.to", "type"}
	ContractColumns  = []string{"result.address", "isERC20"}
	BlockTimeColumns = []string{"number", "timestamp"}
)

// NormalizeAddress canonicalizes an address to lower-case 0x-prefixed hex
// without leading zeros. Decimal input (as found in contract dumps) is
// converted. Empty and NaN values normalize to "".
func NormalizeAddress(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == "nan" {
		return ""
	}

	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") {
		_, ok = n.SetString(s[2:], 16)
	} else {
		_, ok = n.SetString(s, 10)
	}
	if !ok {
		return s
	}
	return "0x" + n.Text(16)
}

// readCSV returns the column index and data rows of a CSV stream after
// checking it against the required columns.
func readCSV(r io.Reader, required []string) (map[string]int, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, &eventlog.ColumnError{Missing: append([]string(nil), required...)}
	}

	idx, err := eventlog.ColumnIndex(records[0], required)
	if err != nil {
		return nil, nil, err
	}
	return idx, records[1:], nil
}

func cell(record []string, idx map[string]int, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// CSVTraceReader reads flattened traces with dotted column names.
type CSVTraceReader struct{}

// ReadTraces implements TraceReader.
func (CSVTraceReader) ReadTraces(r io.Reader) ([]Trace, error) {
	idx, rows, err := readCSV(r, TraceColumns)
	if err != nil {
		return nil, err
	}

	traces := make([]Trace, 0, len(rows))
	for i, record := range rows {
		raw := cell(record, idx, "blockNumber")
		block, err := eventlog.ParseInt(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse blockNumber %q: %w", i+2, raw, err)
		}
		traces = append(traces, Trace{
			Row:             i,
			BlockNumber:     block,
			TransactionHash: cell(record, idx, "transactionHash"),
			From:            cell(record, idx, "action.from"),
			To:              cell(record, idx, "action.to"),
			Type:            cell(record, idx, "type"),
		})
	}
	return traces, nil
}

// JSONTraceReader reads a stream of parity trace objects, one per line.
type JSONTraceReader struct{}

type jsonTrace struct {
	Action struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"action"`
	BlockNumber     json.Number `json:"blockNumber"`
	TransactionHash string      `json:"transactionHash"`
	Type            string      `json:"type"`
}

// ReadTraces implements TraceReader.
func (JSONTraceReader) ReadTraces(r io.Reader) ([]Trace, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	traces := []Trace{}
	for row := 0; ; row++ {
		var jt jsonTrace
		if err := dec.Decode(&jt); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("trace %d: %w", row, err)
		}
		if jt.TransactionHash == "" || jt.Type == "" || jt.BlockNumber == "" {
			return nil, fmt.Errorf("trace %d: %w", row, &eventlog.ColumnError{Missing: missingJSONFields(jt)})
		}

		block, err := eventlog.ParseInt(jt.BlockNumber.String())
		if err != nil {
			return nil, fmt.Errorf("trace %d: parse blockNumber %q: %w", row, jt.BlockNumber, err)
		}
		traces = append(traces, Trace{
			Row:             row,
			BlockNumber:     block,
			TransactionHash: jt.TransactionHash,
			From:            jt.Action.From,
			To:              jt.Action.To,
			Type:            jt.Type,
		})
	}
	return traces, nil
}

func missingJSONFields(jt jsonTrace) []string {
	var missing []string
	if jt.BlockNumber == "" {
		missing = append(missing, "blockNumber")
	}
	if jt.TransactionHash == "" {
		missing = append(missing, "transactionHash")
	}
	if jt.Type == "" {
		missing = append(missing, "type")
	}
	return missing
}

// ReadContracts reads a contract lookup with result.address and isERC20 columns.
func ReadContracts(r io.Reader) (ContractLookup, error) {
	idx, rows, err := readCSV(r, ContractColumns)
	if err != nil {
		return nil, fmt.Errorf("contracts lookup: %w", err)
	}

	lookup := make(ContractLookup, len(rows))
	for i, record := range rows {
		addr := NormalizeAddress(cell(record, idx, "result.address"))
		if addr == "" {
			continue
		}
		isERC20 := false
		if raw := cell(record, idx, "isERC20"); raw != "" {
			if isERC20, err = strconv.ParseBool(raw); err != nil {
				return nil, fmt.Errorf("contracts lookup row %d: parse isERC20 %q: %w", i+2, raw, err)
			}
		}
		lookup[addr] = Contract{Address: addr, IsERC20: isERC20}
	}
	return lookup, nil
}

// ReadBlockTimes reads a block times table with number and timestamp columns.
func ReadBlockTimes(r io.Reader) (BlockTimes, error) {
	idx, rows, err := readCSV(r, BlockTimeColumns)
	if err != nil {
		return nil, fmt.Errorf("block times: %w", err)
	}

	times := make(BlockTimes, len(rows))
	for i, record := range rows {
		number, err := eventlog.ParseInt(cell(record, idx, "number"))
		if err != nil {
			return nil, fmt.Errorf("block times row %d: parse number: %w", i+2, err)
		}
		ts, err := eventlog.ParseInt(cell(record, idx, "timestamp"))
		if err != nil {
			return nil, fmt.Errorf("block times row %d: parse timestamp: %w", i+2, err)
		}
		times[number] = ts
	}
	return times, nil
}

// WriteAddressLookup writes the address lookup table as CSV.
func WriteAddressLookup(w io.Writer, addresses []Address) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "address_hex", "isContract", "isERC20"})
	for _, a := range addresses {
		cw.Write([]string{
			strconv.FormatInt(a.ID, 10),
			a.Address,
			strconv.FormatBool(a.IsContract),
			strconv.FormatBool(a.IsERC20),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteTransactionLookup writes the transaction hash to case id table as CSV.
func WriteTransactionLookup(w io.Writer, txs []TransactionRef) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "transaction_hash"})
	for _, tx := range txs {
		cw.Write([]string{strconv.FormatInt(int64(tx.ID), 10), tx.Hash})
	}
	cw.Flush()
	return cw.Error()
}

func sortedKeys(c ContractLookup) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

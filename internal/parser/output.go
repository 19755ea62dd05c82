package parser

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/harrison/chainminer/internal/eventlog"
	"github.com/harrison/chainminer/internal/filelock"
)

// OutputPaths names the three files written for one parsed trace file.
type OutputPaths struct {
	EventLog          string
	AddressLookup     string
	TransactionLookup string
}

// OutputPathsFor returns ps_<infix>_event_log.csv and its lookup siblings in dir.
func OutputPathsFor(dir, infix string) OutputPaths {
	return OutputPaths{
		EventLog:          filepath.Join(dir, fmt.Sprintf("ps_%s_event_log.csv", infix)),
		AddressLookup:     filepath.Join(dir, fmt.Sprintf("ps_%s_address_lookup.csv", infix)),
		TransactionLookup: filepath.Join(dir, fmt.Sprintf("ps_%s_transaction_lookup.csv", infix)),
	}
}

// WriteOutputs writes the event log and both lookup tables of res.
func WriteOutputs(dir, infix string, res *Result) (OutputPaths, error) {
	paths := OutputPathsFor(dir, infix)

	if err := eventlog.WriteFile(paths.EventLog, res.Events); err != nil {
		return paths, fmt.Errorf("write event log: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteAddressLookup(&buf, res.Addresses); err != nil {
		return paths, fmt.Errorf("write address lookup: %w", err)
	}
	if err := filelock.LockAndWrite(paths.AddressLookup, buf.Bytes()); err != nil {
		return paths, err
	}

	buf.Reset()
	if err := WriteTransactionLookup(&buf, res.Transactions); err != nil {
		return paths, fmt.Errorf("write transaction lookup: %w", err)
	}
	if err := filelock.LockAndWrite(paths.TransactionLookup, buf.Bytes()); err != nil {
		return paths, err
	}

	return paths, nil
}

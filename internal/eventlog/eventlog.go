// Package eventlog reads and writes cleaned event logs.
//
// An event log is a CSV file with at least the columns total_pos,
// transaction_id, transaction_type and timestamp. Extra columns (such as a
// leading index column or the sender/receiver flags written by the parser)
// are ignored on read.
package eventlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/chainminer/internal/filelock"
	"github.com/harrison/chainminer/internal/models"
)

// Column names of a cleaned event log.
const (
	ColumnPosition  = "total_pos"
	ColumnCaseID    = "transaction_id"
	ColumnCategory  = "transaction_type"
	ColumnTimestamp = "timestamp"
)

// RequiredColumns lists the columns every event log must carry.
var RequiredColumns = []string{ColumnPosition, ColumnCaseID, ColumnCategory, ColumnTimestamp}

// ErrColumnsMismatch is returned when a CSV header lacks required columns.
var ErrColumnsMismatch = errors.New("column names do not match the required pattern")

// ColumnError lists the required columns missing from a header.
type ColumnError struct {
	Missing []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: missing %s", ErrColumnsMismatch, strings.Join(e.Missing, ", "))
}

func (e *ColumnError) Unwrap() error {
	return ErrColumnsMismatch
}

// CheckColumns reports whether every required column is present in header.
// Order and extra columns do not matter.
func CheckColumns(header []string, required []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	var missing []string
	for _, r := range required {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ColumnError{Missing: missing}
	}
	return nil
}

// ColumnIndex maps each required column to its index in header.
// It returns a ColumnError if any column is missing.
func ColumnIndex(header []string, required []string) (map[string]int, error) {
	if err := CheckColumns(header, required); err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(required))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx, nil
}

// Read parses an event log. Rows are returned in file order; callers that
// need position order sort them with models.SortEventsByPosition.
func Read(r io.Reader) ([]models.Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: %w", models.ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	// Copy: the reader reuses its record slice.
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx, err := ColumnIndex(header, RequiredColumns)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		ev, err := parseRecord(record, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		events = append(events, ev)
	}

	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

func parseRecord(record []string, idx map[string]int) (models.Event, error) {
	field := func(name string) (string, error) {
		i := idx[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing value for %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	var ev models.Event
	var err error
	var raw string

	if raw, err = field(ColumnPosition); err != nil {
		return ev, err
	}
	if ev.Position, err = ParseInt(raw); err != nil {
		return ev, fmt.Errorf("parse %s %q: %w", ColumnPosition, raw, err)
	}

	if raw, err = field(ColumnCaseID); err != nil {
		return ev, err
	}
	caseID, err := ParseInt(raw)
	if err != nil {
		return ev, fmt.Errorf("parse %s %q: %w", ColumnCaseID, raw, err)
	}
	ev.CaseID = models.CaseID(caseID)

	if raw, err = field(ColumnCategory); err != nil {
		return ev, err
	}
	ev.Category = models.Category(raw)

	if raw, err = field(ColumnTimestamp); err != nil {
		return ev, err
	}
	if ev.Timestamp, err = ParseInt(raw); err != nil {
		return ev, fmt.Errorf("parse %s %q: %w", ColumnTimestamp, raw, err)
	}

	return ev, nil
}

// ParseInt parses an integer column. Integral floats such as "1520000000.0"
// are accepted since spreadsheet tools and dataframe exports often emit them.
func ParseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}

// ReadFile reads an event log from path.
func ReadFile(path string) ([]models.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	events, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// Write writes events as a cleaned event log with the required columns only.
func Write(w io.Writer, events []models.Event) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(RequiredColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ev := range events {
		record := []string{
			strconv.FormatInt(ev.Position, 10),
			strconv.FormatInt(int64(ev.CaseID), 10),
			string(ev.Category),
			strconv.FormatInt(ev.Timestamp, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write event at position %d: %w", ev.Position, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes events to path under a file lock with an atomic rename.
func WriteFile(path string, events []models.Event) error {
	var buf bytes.Buffer
	if err := Write(&buf, events); err != nil {
		return err
	}
	return filelock.LockAndWrite(path, buf.Bytes())
}

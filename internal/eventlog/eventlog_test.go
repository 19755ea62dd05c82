package eventlog

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/chainminer/internal/models"
)

func TestRead(t *testing.T) {
	input := `,total_pos,transaction_id,transaction_type,timestamp,senderIsContract
0,5000000000000000,0,UtC,1520035200,False
1,5000000000000001,0,CtU,1520035200.0,True
2,5000000000000002,1,UtU,1520035260,False
`
	events, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, models.Event{
		CaseID: 0, Position: 5000000000000001, Category: models.CategoryCtU, Timestamp: 1520035200,
	}, events[1])
	assert.Equal(t, models.CaseID(1), events[2].CaseID)
}

func TestRead_ColumnOrderIndependent(t *testing.T) {
	input := "timestamp,transaction_type,transaction_id,total_pos\n1520035200,CtC,7,42\n"

	events, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(42), events[0].Position)
	assert.Equal(t, models.CaseID(7), events[0].CaseID)
}

func TestRead_MissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("total_pos,transaction_type\n1,CtC\n"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnsMismatch)

	var colErr *ColumnError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, []string{"timestamp", "transaction_id"}, colErr.Missing)
}

func TestRead_BadNumber(t *testing.T) {
	input := "total_pos,transaction_id,transaction_type,timestamp\n1,0,CtC,100\nx,0,CtC,101\n"

	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "total_pos")
}

func TestRead_Empty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	events, err := Read(strings.NewReader("total_pos,transaction_id,transaction_type,timestamp\n"))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "12", want: 12},
		{in: "-3", want: -3},
		{in: "1520035200.0", want: 1520035200},
		{in: "1.5", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "9223372036854775808.0", wantErr: true},
		{in: "1e19", wantErr: true},
		{in: "-9223372036854775808.0", want: -9223372036854775808},
	}
	for _, tt := range tests {
		got, err := ParseInt(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ps_test_event_log.csv")
	events := []models.Event{
		{CaseID: 0, Position: 10, Category: models.CategoryUtC, Timestamp: 1520035200},
		{CaseID: 1, Position: 11, Category: models.CategoryUtU, Timestamp: 1520035201},
	}

	require.NoError(t, WriteFile(path, events))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, events, got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

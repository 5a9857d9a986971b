package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestCSV(t *testing.T) (*CSV, string) {
	t.Helper()
	dir := t.TempDir()
	j, err := NewCSV(filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv"), filepath.Join(dir, "sessions.csv"))
	require.NoError(t, err)
	return j, dir
}

func TestCSVHeaders(t *testing.T) {
	t.Parallel()

	j, dir := newTestCSV(t)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{tradeHeader}, readCSV(t, filepath.Join(dir, "trades.csv")))
	assert.Equal(t, [][]string{equityHeader}, readCSV(t, filepath.Join(dir, "equity.csv")))
	assert.Equal(t, [][]string{sessionHeader}, readCSV(t, filepath.Join(dir, "sessions.csv")))
}

func TestCSVRecords(t *testing.T) {
	t.Parallel()

	j, dir := newTestCSV(t)

	require.NoError(t, j.RecordTrade(sampleTrade("S1-0001", 1, closeT, -12.5)))
	require.NoError(t, j.RecordEquity(EquitySnapshot{SessionID: "S1", Time: openT, Balance: 100000, Equity: 99990.5}))
	require.NoError(t, j.RecordSession(sampleSession("S1", closeT)))
	require.NoError(t, j.Close())

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	row := trades[1]
	require.Len(t, row, len(tradeHeader))
	assert.Equal(t, "S1-0001", row[0])
	assert.Equal(t, "1", row[2])
	assert.Equal(t, "1.500000", row[6])
	assert.Equal(t, "2024-01-02T03:04:05Z", row[9])
	assert.Equal(t, "-12.500000", row[11])
	assert.Equal(t, "stop_loss", row[16])

	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, equity, 2)
	assert.Equal(t, []string{"S1", "2024-01-02T03:04:05Z", "100000.000000", "99990.500000"}, equity[1])

	sessions := readCSV(t, filepath.Join(dir, "sessions.csv"))
	require.Len(t, sessions, 2)
	assert.Equal(t, "ema_bb_turtle", sessions[1][4])
	assert.Equal(t, "100050.000000", sessions[1][14])
}

func TestNewCSV_BadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "t.csv"), filepath.Join(dir, "missing", "e.csv"), filepath.Join(dir, "s.csv"))
	assert.Error(t, err)
}

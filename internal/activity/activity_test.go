package activity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:     testTime,
		Action:        ActionAdd,
		TransactionID: "srv-1",
		Details:       "Expense 4.50 Coffee (Food)",
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity.csv")
	require.NoError(t, Append(path, testEntry()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header+"\n"))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testEntry(), entries[0])
}

func TestAppend_ExistingFileKeepsOneHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.csv")
	require.NoError(t, Append(path, testEntry()))

	e2 := testEntry()
	e2.Action = ActionDelete
	e2.Details = ""
	require.NoError(t, Append(path, e2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), Header))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionAdd, entries[0].Action)
	assert.Equal(t, ActionDelete, entries[1].Action)
}

func TestAppend_NothingToWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.csv")
	require.NoError(t, Append(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRead_Missing(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarshalEntry_UsesUTC(t *testing.T) {
	e := testEntry()
	e.Timestamp = testTime.In(time.FixedZone("CET", 3600))
	row := MarshalEntry(e)
	assert.Equal(t, "2025-03-14T09:26:53Z", row[colTimestamp])
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]string{"a", "b"})
	assert.Error(t, err)

	_, err = UnmarshalEntry([]string{"yesterday", ActionAdd, "", ""})
	assert.Error(t, err)
}

func TestReadEntries_QuotedDetails(t *testing.T) {
	in := Header + "\n2025-03-14T09:26:53Z,edit,e1,\"Lunch, with \"\"Bo\"\"\"\n"
	entries, err := ReadEntries(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `Lunch, with "Bo"`, entries[0].Details)
}

func TestLast(t *testing.T) {
	all := []Entry{{Action: "a"}, {Action: "b"}, {Action: "c"}}
	assert.Equal(t, all, Last(all, 0))
	assert.Equal(t, all, Last(all, 5))
	assert.Equal(t, []Entry{{Action: "b"}, {Action: "c"}}, Last(all, 2))
}

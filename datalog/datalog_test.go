package datalog

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.sqlite")
	w, err := Open(path, nil)
	require.NoError(t, err)

	rows := []SampleRow{
		{Timestamp: 1000, Distance: 120, SignalStrength: 80, Filtered: 120, Status: "STATUS BYTE: 0x00"},
		{Timestamp: 1016, Distance: -1, SignalStrength: -1, Filtered: 110.5, Error: "i2c: no ack"},
	}
	for _, r := range rows {
		require.True(t, w.LogSample(r))
	}
	require.NoError(t, w.Close())
	assert.EqualValues(t, 2, w.Written())
	assert.Zero(t, w.Dropped())

	got, err := ReadSamples(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestWriterClosed(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "samples.sqlite"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.False(t, w.LogSample(SampleRow{}))
	assert.ErrorIs(t, w.Close(), ErrClosed)
}

type event struct {
	Name    string
	Count   uint16
	Active  bool
	At      time.Duration
	Tags    []string
	private int
}

func TestColumns(t *testing.T) {
	cols := columns(reflect.TypeOf(event{}))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	assert.Equal(t, []string{"Name", "Count", "Active", "At"}, names)

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS events (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, Name TEXT, Count INTEGER, Active INTEGER, At INTEGER)",
		createStatement("events", cols))
	assert.Equal(t, "INSERT INTO events (Name,Count,Active,At) VALUES(?,?,?,?)", insertStatement("events", cols))
	assert.Equal(t, []interface{}{"boot", "3", "1", "5"},
		marshalRow(reflect.ValueOf(event{Name: "boot", Count: 3, Active: true, At: 5}), cols))
}

func TestWriterArbitraryTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.sqlite")
	w, err := Open(path, nil)
	require.NoError(t, err)
	require.True(t, w.Log("events", event{Name: "power cycle", Count: 1}))
	require.True(t, w.Log("events", "not a struct"))
	require.NoError(t, w.Close())
	assert.EqualValues(t, 1, w.Written())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	var name string
	require.NoError(t, db.QueryRow("SELECT Name FROM events").Scan(&name))
	assert.Equal(t, "power cycle", name)
}

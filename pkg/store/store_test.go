package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godigester/pkg/pipeline"
)

func testRecords() []pipeline.Record {
	return []pipeline.Record{
		{Millis: 200, Seconds: 0, Current: 0.0, Temperature: 25.0, Heating: true},
		{Millis: 400, Seconds: 0, Current: 1.23456, Temperature: 33.5, Heating: true},
		{Millis: 600, Seconds: 0, Current: 2.5, Temperature: 37.6, Heating: false},
	}
}

func TestAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	s, err := Open(path)
	require.NoError(t, err)

	for _, rec := range testRecords() {
		require.NoError(t, s.Append(rec))
	}
	require.NoError(t, s.Close())

	records, skipped, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 3)

	for i, want := range testRecords() {
		assert.Equal(t, want.Millis, records[i].Millis)
		assert.Equal(t, want.Seconds, records[i].Seconds)
		assert.InDelta(t, want.Current, records[i].Current, 0.000005)
		assert.InDelta(t, want.Temperature, records[i].Temperature, 0.005)
		assert.Equal(t, want.Heating, records[i].Heating)
	}
}

func TestAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	assert.Error(t, s.Append(pipeline.Record{}))
}

func TestAppendIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(pipeline.Record{Millis: 200, Temperature: 25.0}))
	require.NoError(t, s.Close())

	// Reopening must not truncate.
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(pipeline.Record{Millis: 400, Temperature: 26.0}))
	require.NoError(t, s.Close())

	records, skipped, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Len(t, records, 2)
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.csv")

	content := "200,0,0.00000,25.00,ON\n" +
		"garbage line\n" +
		"400,0,1.00000,26.00\n" + // missing heater field
		"\n" +
		"600,0,2.00000,27.00,OFF\n" +
		"800,0,not-a-number,28.00,ON\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, skipped, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(200), records[0].Millis)
	assert.Equal(t, uint64(600), records[1].Millis)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.csv")

	require.NoError(t, Write(path, testRecords()))

	records, skipped, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	assert.Len(t, records, 3)
}

package digester

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLine_LiveRecord(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("200,0,1.50000,33.50,ON\r")
	d.handleLine("")
	d.handleLine("   ")

	require.Len(t, d.records, 1)
	rec := <-d.records
	assert.Equal(t, uint64(200), rec.Millis)
	assert.InDelta(t, 1.5, rec.Current, 1e-9)
	assert.True(t, rec.Heating)
}

func TestHandleLine_MalformedLiveLineDropped(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("not a record")
	d.handleLine("200,0,1.5")

	assert.Empty(t, d.records)
}

func TestHandleLine_DumpCapture(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("[CSV_START]")
	d.handleLine("200,0,0.00000,25.00,ON")
	d.handleLine("garbage in the replay")
	d.handleLine("400,0,2.50000,33.00,ON")
	d.handleLine("[CSV_END]")

	select {
	case res := <-d.dumps:
		assert.Len(t, res.records, 2)
		assert.Equal(t, 1, res.skipped)
		assert.Equal(t, uint64(200), res.records[0].Millis)
		assert.Equal(t, uint64(400), res.records[1].Millis)
	case <-time.After(time.Second):
		t.Fatal("no dump result delivered")
	}

	// Replay lines must not leak into the live stream.
	assert.Empty(t, d.records)
}

func TestHandleLine_LiveStreamResumesAfterDump(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("[CSV_START]")
	d.handleLine("200,0,0.00000,25.00,ON")
	d.handleLine("[CSV_END]")
	d.handleLine("600,0,1.00000,34.00,ON")

	require.Len(t, d.records, 1)
	rec := <-d.records
	assert.Equal(t, uint64(600), rec.Millis)
}

func TestHandleLine_UnsolicitedEndMarkerIgnored(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("[CSV_END]")

	assert.Empty(t, d.dumps)
	assert.Empty(t, d.records)
}

func TestHandleLine_StatusReply(t *testing.T) {
	d := New("/dev/null", 0, 10)

	d.handleLine("[STATUS] uptime_ms=1234 records=6 heater=ON temp=33.50 current=2.50000")

	select {
	case s := <-d.statuses:
		assert.Equal(t, "uptime_ms=1234 records=6 heater=ON temp=33.50 current=2.50000", s)
	case <-time.After(time.Second):
		t.Fatal("no status delivered")
	}
}

func TestSerialNotConnected(t *testing.T) {
	d := New("/dev/null", 0, 10)

	assert.False(t, d.IsConnected())
	assert.Error(t, d.send(dumpCommand))
	assert.NoError(t, d.Close(), "closing a never-connected device is a no-op")
}

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one report produced at the end of a reporting epoch. It is
// immutable once constructed; the controller hands the same value to the
// emitter and the appender.
type Record struct {
	Millis      uint64  // Milliseconds since controller start
	Seconds     uint64  // Whole seconds since controller start
	Current     float64 // Averaged RMS current (A)
	Temperature float64 // Temperature reading (degrees C)
	Heating     bool    // Relay state at report time
}

// HeaterToken returns the persisted token for the relay state.
func (r Record) HeaterToken() string {
	if r.Heating {
		return "ON"
	}
	return "OFF"
}

// AppendText appends the record's line representation to b, without a
// trailing newline. Format: millis,seconds,current(5dp),temperature(2dp),ON|OFF.
func (r Record) AppendText(b []byte) []byte {
	b = strconv.AppendUint(b, r.Millis, 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, r.Seconds, 10)
	b = append(b, ',')
	b = strconv.AppendFloat(b, r.Current, 'f', 5, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, r.Temperature, 'f', 2, 64)
	b = append(b, ',')
	b = append(b, r.HeaterToken()...)
	return b
}

// String returns the record as a single CSV line without a trailing newline.
func (r Record) String() string {
	return string(r.AppendText(nil))
}

// ParseRecord parses a single CSV line into a Record.
// Expected format: millis,seconds,current,temperature,ON|OFF.
func ParseRecord(line string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 5 {
		return Record{}, fmt.Errorf("invalid record: expected 5 comma-separated fields, got %d", len(parts))
	}

	millis, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid millis: %w", err)
	}

	seconds, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid seconds: %w", err)
	}

	current, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid current: %w", err)
	}

	temperature, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid temperature: %w", err)
	}

	var heating bool
	switch strings.ToUpper(strings.TrimSpace(parts[4])) {
	case "ON":
		heating = true
	case "OFF":
		heating = false
	default:
		return Record{}, fmt.Errorf("invalid heater state %q: expected ON or OFF", parts[4])
	}

	return Record{
		Millis:      millis,
		Seconds:     seconds,
		Current:     current,
		Temperature: temperature,
		Heating:     heating,
	}, nil
}

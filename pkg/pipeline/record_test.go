package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordString(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "zero record",
			rec:  Record{},
			want: "0,0,0.00000,0.00,OFF",
		},
		{
			name: "heating record",
			rec: Record{
				Millis:      12400,
				Seconds:     12,
				Current:     1.234564,
				Temperature: 34.567,
				Heating:     true,
			},
			want: "12400,12,1.23456,34.57,ON",
		},
		{
			name: "negative offset current rounds at 5 digits",
			rec: Record{
				Millis:      200,
				Seconds:     0,
				Current:     0.000004,
				Temperature: 25.0,
			},
			want: "200,0,0.00000,25.00,OFF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.String())
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	orig := Record{
		Millis:      987654,
		Seconds:     987,
		Current:     2.71828,
		Temperature: 36.5,
		Heating:     true,
	}

	parsed, err := ParseRecord(orig.String())
	require.NoError(t, err)

	assert.Equal(t, orig.Millis, parsed.Millis)
	assert.Equal(t, orig.Seconds, parsed.Seconds)
	assert.InDelta(t, orig.Current, parsed.Current, 0.000005)
	assert.InDelta(t, orig.Temperature, parsed.Temperature, 0.005)
	assert.Equal(t, orig.Heating, parsed.Heating)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Record
		wantErr bool
	}{
		{
			name: "valid line",
			line: "1000,1,0.50000,33.25,ON",
			want: Record{Millis: 1000, Seconds: 1, Current: 0.5, Temperature: 33.25, Heating: true},
		},
		{
			name: "lowercase token and surrounding whitespace",
			line: "  1000, 1, 0.5, 33.25, off \r",
			want: Record{Millis: 1000, Seconds: 1, Current: 0.5, Temperature: 33.25, Heating: false},
		},
		{
			name:    "too few fields",
			line:    "1000,1,0.5,33.25",
			wantErr: true,
		},
		{
			name:    "too many fields",
			line:    "1000,1,0.5,33.25,ON,extra",
			wantErr: true,
		},
		{
			name:    "bad millis",
			line:    "abc,1,0.5,33.25,ON",
			wantErr: true,
		},
		{
			name:    "bad current",
			line:    "1000,1,x,33.25,ON",
			wantErr: true,
		},
		{
			name:    "bad heater token",
			line:    "1000,1,0.5,33.25,MAYBE",
			wantErr: true,
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Millis, got.Millis)
			assert.Equal(t, tt.want.Seconds, got.Seconds)
			assert.InDelta(t, tt.want.Current, got.Current, 1e-9)
			assert.InDelta(t, tt.want.Temperature, got.Temperature, 1e-9)
			assert.Equal(t, tt.want.Heating, got.Heating)
		})
	}
}

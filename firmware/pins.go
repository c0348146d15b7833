//go:build tinygo

package main

import "machine"

const (
	// Pipeline timing
	SAMPLE_INTERVAL_US = 1000   // Minimum spacing between CT samples
	RMS_WINDOW_US      = 20000  // Accumulated sample time per RMS window
	REPORT_INTERVAL_US = 200000 // Reporting epoch

	// Analog front end
	ADC_REFERENCE_V = 3.3  // ADC full-scale voltage
	ADC_BIAS_V      = 1.65 // CT signal is biased to mid-rail
	CT_GAIN_A_PER_V = 30.0 // Current transformer transfer gain
	NOISE_FLOOR_A   = 0.1  // RMS below this reports 0.0
	LM35_C_PER_V    = 100.0

	// Hysteresis band (mesophilic digestion range)
	TEMP_LOW_C  = 32.0
	TEMP_HIGH_C = 37.0

	// On-device record log: 3000 records at 5/s is 10 minutes of history
	LOG_CAPACITY = 3000

	// Relay pin
	PIN_RELAY = machine.IO26

	// ADC pins
	PIN_CT   = machine.IO34
	PIN_TEMP = machine.IO35

	// Serial configuration
	// Baud rate calculation: one record line "millis,seconds,current,temp,ON\n"
	// is ~35 bytes max. 5 records/sec * 35 bytes = 175 bytes/sec live. The
	// binding case is a dump replay: 3000 lines * 35 bytes at 115200 baud
	// (11,520 bytes/sec) completes in ~9 seconds.
	UART_BAUD_RATE = 115200
)

//go:build tinygo

//go:generate tinygo flash -target=esp32-coreboard-v2

package main

import (
	"machine"
	"strconv"
	"time"

	"github.com/itohio/godigester/pkg/pipeline"
)

var (
	adcCT   machine.ADC
	adcTemp machine.ADC
	uart    = machine.UART0

	ctrl   *pipeline.Controller
	recLog *recordLog

	// Serial buffer for reading command lines
	serialBuffer [16]byte
	serialPos    int

	start time.Time
)

func main() {
	// Configure relay pin as output, de-energized (thermostat starts Idle)
	PIN_RELAY.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_RELAY.Low()

	// Configure ADC pins
	machine.InitADC()
	PIN_CT.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_TEMP.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcCT = machine.ADC{Pin: PIN_CT}
	adcTemp = machine.ADC{Pin: PIN_TEMP}
	adcCT.Configure(machine.ADCConfig{})
	adcTemp.Configure(machine.ADCConfig{})

	// Configure UART for the command interface
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	recLog = newRecordLog(LOG_CAPACITY)
	ctrl = pipeline.New(params(), ctSensor{}, lm35{}, relay{}, recLog, lineEmitter{})

	start = time.Now()

	// Main loop: command polling never blocks; the controller's three
	// timers fire off the monotonic microsecond counter.
	for {
		processSerial()
		ctrl.Tick(uint64(time.Since(start).Microseconds()))

		// Small delay to prevent tight loop (but still allow precise timing)
		time.Sleep(100 * time.Microsecond)
	}
}

func params() pipeline.Params {
	return pipeline.Params{
		BiasVoltage:    ADC_BIAS_V,
		Gain:           CT_GAIN_A_PER_V,
		NoiseFloor:     NOISE_FLOOR_A,
		SampleInterval: SAMPLE_INTERVAL_US,
		Window:         RMS_WINDOW_US,
		ReportInterval: REPORT_INTERVAL_US,
		LowThreshold:   TEMP_LOW_C,
		HighThreshold:  TEMP_HIGH_C,
	}
}

// ctSensor reads the current-transformer channel.
type ctSensor struct{}

func (ctSensor) ReadVoltage() float64 {
	return float64(adcCT.Get()) / 65535.0 * ADC_REFERENCE_V
}

// lm35 reads the temperature probe (10 mV per degree C).
type lm35 struct{}

func (lm35) ReadTemperature() float64 {
	volts := float64(adcTemp.Get()) / 65535.0 * ADC_REFERENCE_V
	return volts * LM35_C_PER_V
}

// relay drives the heater relay pin. The controller calls Set only on
// thermostat transitions, so the event line prints once per edge.
type relay struct{}

func (relay) Set(energized bool) {
	if energized {
		PIN_RELAY.High()
		println("[EVENT] heater ON")
	} else {
		PIN_RELAY.Low()
		println("[EVENT] heater OFF")
	}
}

// lineEmitter prints one record line per epoch over the UART.
type lineEmitter struct{}

func (lineEmitter) Emit(rec pipeline.Record) {
	buf := rec.AppendText(make([]byte, 0, 40))
	println(string(buf))
}

// recordLog is the on-device persistence: a fixed ring of the most recent
// records, replayed by the dump command.
type recordLog struct {
	recs []pipeline.Record
	next int
	full bool
}

func newRecordLog(capacity int) *recordLog {
	return &recordLog{
		recs: make([]pipeline.Record, capacity),
	}
}

// Append implements pipeline.Appender. It cannot fail; once the ring is
// full the oldest record is overwritten.
func (l *recordLog) Append(rec pipeline.Record) error {
	l.recs[l.next] = rec
	l.next++
	if l.next == len(l.recs) {
		l.next = 0
		l.full = true
	}
	return nil
}

func (l *recordLog) size() int {
	if l.full {
		return len(l.recs)
	}
	return l.next
}

// replay prints the log oldest-first between the CSV markers. The loop
// stalls sampling for the duration of the replay; retrieval is an
// operator action, not part of the control regime.
func (l *recordLog) replay() {
	println("[CSV_START]")

	first := 0
	if l.full {
		first = l.next
	}
	for i := 0; i < l.size(); i++ {
		rec := l.recs[(first+i)%len(l.recs)]
		buf := rec.AppendText(make([]byte, 0, 40))
		println(string(buf))
	}

	println("[CSV_END]")
}

// processSerial polls the UART for command lines without blocking.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			dispatchCommand(string(serialBuffer[:serialPos]))
			serialPos = 0
			continue
		}

		// Ignore whitespace
		if data == ' ' || data == '\t' {
			continue
		}

		// Only accept lowercase letters; anything else resets the buffer
		if data >= 'a' && data <= 'z' {
			if serialPos < len(serialBuffer) {
				serialBuffer[serialPos] = data
				serialPos++
			}
		} else {
			serialPos = 0
		}
	}
}

// dispatchCommand runs one command line. Unknown commands are ignored.
func dispatchCommand(cmd string) {
	switch cmd {
	case "dump":
		recLog.replay()
	case "status":
		printStatus()
	}
}

func printStatus() {
	rec, _ := ctrl.LastRecord()

	print("[STATUS] uptime_ms=")
	print(rec.Millis)
	print(" records=")
	print(recLog.size())
	print(" heater=")
	print(rec.HeaterToken())
	print(" temp=")
	print(strconv.FormatFloat(rec.Temperature, 'f', 2, 64))
	print(" current=")
	print(strconv.FormatFloat(rec.Current, 'f', 5, 64))
	print("\n")
}

package digester

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/godigester/pkg/pipeline"
)

const (
	// DefaultBaudRate is the controller's UART rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the records channel buffer.
	DefaultBufferSize = 100

	// Protocol markers emitted by the firmware.
	dumpStartMarker = "[CSV_START]"
	dumpEndMarker   = "[CSV_END]"
	statusPrefix    = "[STATUS]"
	eventPrefix     = "[EVENT]"

	dumpCommand   = "dump\n"
	statusCommand = "status\n"
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a connection to the digester controller MCU. It streams live
// report records and can request a dump of the on-device log or a status
// line; both requests are answered in-band between marker lines, decoupled
// from the live stream.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	records   chan pipeline.Record
	dumps     chan dumpResult
	statuses  chan string
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	// Reader-goroutine state for dump capture. Only touched by readRecords.
	capturing      bool
	capture        []pipeline.Record
	captureSkipped int
}

type dumpResult struct {
	records []pipeline.Record
	skipped int
}

// New creates a new Serial device for the given port.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		records:  make(chan pipeline.Record, bufSize),
		dumps:    make(chan dumpResult, 1),
		statuses: make(chan string, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading records.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true
	d.done = make(chan struct{})

	go d.readRecords()

	return nil
}

// Close closes the connection and stops reading records.
func (d *Serial) Close() error {
	d.mu.Lock()

	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()

	// Closing the port unblocks the reader's Scan.
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false
	done := d.done
	d.mu.Unlock()

	// Wait for the reader to exit before closing its output.
	<-done
	close(d.records)

	return nil
}

// Records returns the channel of live report records.
func (d *Serial) Records() <-chan pipeline.Record {
	return d.records
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Dump requests the on-device record log and waits for the replay to finish.
// It returns the parsed records and the number of malformed lines skipped.
func (d *Serial) Dump(ctx context.Context) ([]pipeline.Record, int, error) {
	// Drop any stale reply from an interrupted earlier request.
	select {
	case <-d.dumps:
	default:
	}

	if err := d.send(dumpCommand); err != nil {
		return nil, 0, err
	}

	select {
	case res := <-d.dumps:
		return res.records, res.skipped, nil
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("dump: %w", ctx.Err())
	case <-d.ctx.Done():
		return nil, 0, fmt.Errorf("dump: connection closed")
	}
}

// Status requests a one-line status summary from the controller.
func (d *Serial) Status(ctx context.Context) (string, error) {
	select {
	case <-d.statuses:
	default:
	}

	if err := d.send(statusCommand); err != nil {
		return "", err
	}

	select {
	case s := <-d.statuses:
		return s, nil
	case <-ctx.Done():
		return "", fmt.Errorf("status: %w", ctx.Err())
	case <-d.ctx.Done():
		return "", fmt.Errorf("status: connection closed")
	}
}

func (d *Serial) send(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send command %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

// readRecords reads lines from the serial port and routes them to the live
// stream, a dump capture, or a status reply.
func (d *Serial) readRecords() {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readRecords: %v", r)
		}
	}()

	scanner := bufio.NewScanner(d.conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					log.Printf("Error reading from serial port: %v", err)
				}
				return
			}

			d.handleLine(scanner.Text())
		}
	}
}

// handleLine routes one line from the controller. Lines between the dump
// markers belong to a log replay; a status reply carries its prefix; every
// other non-empty line is a live report record.
func (d *Serial) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	switch {
	case line == dumpStartMarker:
		d.capturing = true
		d.capture = nil
		d.captureSkipped = 0
		return

	case line == dumpEndMarker:
		if !d.capturing {
			return
		}
		d.capturing = false
		res := dumpResult{records: d.capture, skipped: d.captureSkipped}
		d.capture = nil
		select {
		case d.dumps <- res:
		default:
			log.Printf("Dropping unsolicited dump of %d records", len(res.records))
		}
		return

	case strings.HasPrefix(line, statusPrefix):
		select {
		case d.statuses <- strings.TrimSpace(strings.TrimPrefix(line, statusPrefix)):
		default:
		}
		return

	case strings.HasPrefix(line, eventPrefix):
		log.Printf("Device event:%s", strings.TrimPrefix(line, eventPrefix))
		return
	}

	rec, err := pipeline.ParseRecord(line)
	if err != nil {
		if d.capturing {
			d.captureSkipped++
		} else {
			log.Printf("Failed to parse line '%s': %v", line, err)
		}
		return
	}

	if d.capturing {
		d.capture = append(d.capture, rec)
		return
	}

	select {
	case d.records <- rec:
	case <-d.ctx.Done():
	default:
		// Channel full, log and skip
		log.Printf("Records channel full, dropping record")
	}
}

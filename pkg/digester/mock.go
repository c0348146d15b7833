package digester

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/godigester/pkg/config"
	"github.com/itohio/godigester/pkg/pipeline"
)

// Mock simulates a digester controller for testing and development. It runs
// the real pipeline controller against a simulated plant: a first-order
// thermal model for the digester and a synthetic mains waveform on the
// current-transformer channel, closed through the relay collaborator.
type Mock struct {
	cfg    *config.Config
	params pipeline.Params

	records   chan pipeline.Record
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	ctrl  *pipeline.Controller
	plant *plant

	// On-device record log, capped at cfg.Mock.LogCapacity.
	recLog     []pipeline.Record
	lastRecord pipeline.Record

	start time.Time
}

// NewMock creates a mocked controller from the configuration.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mock{
		cfg:     cfg,
		params:  cfg.Params(),
		records: make(chan pipeline.Record, DefaultBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	m.plant = newPlant(&cfg.Mock, m.params)
	m.ctrl = pipeline.New(m.params, m.plant, m.plant, m.plant, m, m)

	return m
}

// Connect starts the simulation loop.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.start = time.Now()
	m.done = make(chan struct{})

	go m.run()

	return nil
}

// Close stops the simulation.
func (m *Mock) Close() error {
	m.mu.Lock()

	if !m.connected {
		m.mu.Unlock()
		return nil
	}

	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	// Wait for the simulation loop to exit before closing its output.
	<-done
	close(m.records)

	return nil
}

// Records returns the channel of live report records.
func (m *Mock) Records() <-chan pipeline.Record {
	return m.records
}

// IsConnected returns whether the mock is currently running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Dump returns a copy of the in-memory record log. A mock never produces
// malformed lines, so the skipped count is always zero.
func (m *Mock) Dump(_ context.Context) ([]pipeline.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return nil, 0, fmt.Errorf("not connected")
	}

	out := make([]pipeline.Record, len(m.recLog))
	copy(out, m.recLog)
	return out, 0, nil
}

// Status returns a one-line summary in the firmware's status format.
func (m *Mock) Status(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return "", fmt.Errorf("not connected")
	}

	return fmt.Sprintf("uptime_ms=%d records=%d heater=%s temp=%.2f current=%.5f",
		m.lastRecord.Millis, len(m.recLog), m.lastRecord.HeaterToken(),
		m.lastRecord.Temperature, m.lastRecord.Current), nil
}

// Emit implements pipeline.Emitter: the record goes to the live stream.
func (m *Mock) Emit(rec pipeline.Record) {
	m.mu.Lock()
	m.lastRecord = rec
	m.mu.Unlock()

	select {
	case m.records <- rec:
	case <-m.ctx.Done():
	default:
		// Channel full, skip
	}
}

// Append implements pipeline.Appender: the record goes to the capped log.
func (m *Mock) Append(rec pipeline.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recLog = append(m.recLog, rec)
	if limit := m.cfg.Mock.LogCapacity; limit > 0 && len(m.recLog) > limit {
		m.recLog = m.recLog[len(m.recLog)-limit:]
	}
	return nil
}

// run steps the plant and the controller on the configured loop period.
func (m *Mock) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Mock.LoopInterval)
	defer ticker.Stop()

	dt := m.cfg.Mock.LoopInterval.Seconds()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.plant.step(dt)
			m.ctrl.Tick(uint64(time.Since(m.start).Microseconds()))
		}
	}
}

// plant models the simulated digester: temperature follows a first-order lag
// toward ambient, or toward the heater's steady-state temperature while the
// relay is energized, and the CT channel carries a mains sine whose
// amplitude is the heater's draw.
type plant struct {
	cfg    *config.MockConfig
	params pipeline.Params

	mu          sync.RWMutex
	temperature float64
	heating     bool
	elapsed     float64 // Simulated seconds, drives the waveform phase
}

func newPlant(cfg *config.MockConfig, params pipeline.Params) *plant {
	return &plant{
		cfg:         cfg,
		params:      params,
		temperature: cfg.AmbientTemp,
	}
}

// ReadVoltage implements pipeline.ADC.
func (p *plant) ReadVoltage() float64 {
	p.mu.RLock()
	heating := p.heating
	t := float32(p.elapsed)
	p.mu.RUnlock()

	var amps float32
	if heating {
		// Sine peak for the configured RMS draw.
		peak := float32(p.cfg.HeaterCurrent) * math32.Sqrt2
		phase := math32.Mod(float32(p.cfg.MainsHz)*t, 1) * 2 * math32.Pi
		amps = peak * math32.Sin(phase)
	}

	noise := float32(p.cfg.NoiseLevel) * (math32.Sin(t*997) + math32.Cos(t*1301)) * 0.5

	return p.params.BiasVoltage + float64(amps)/p.params.Gain + float64(noise)
}

// ReadTemperature implements pipeline.Thermometer.
func (p *plant) ReadTemperature() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.temperature
}

// Set implements pipeline.Relay, closing the loop back into the model.
func (p *plant) Set(energized bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heating = energized
}

// step advances the thermal model by dt seconds.
func (p *plant) step(dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := p.cfg.AmbientTemp
	if p.heating {
		target = p.cfg.MaxTemp
	}

	alpha := dt / p.cfg.TimeConstant.Seconds()
	p.temperature += alpha * (target - p.temperature)
	p.elapsed += dt
}

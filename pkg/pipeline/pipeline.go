// Package pipeline implements the digester controller's signal-processing
// core: fixed-interval current sampling, time-weighted RMS reduction,
// periodic averaging, and hysteresis-driven heater actuation.
//
// The package is deliberately free of host-side dependencies so the same
// code runs inside the TinyGo firmware and in host tools and tests.
package pipeline

import "math"

// ADC reads the instantaneous voltage on the current-transformer channel.
// The reading is expected to be non-blocking and always available.
type ADC interface {
	ReadVoltage() float64
}

// Thermometer reads the temperature in degrees C. Non-blocking.
type Thermometer interface {
	ReadTemperature() float64
}

// Relay drives the heater relay. Set is idempotent and fire-and-forget;
// the controller only calls it on state transitions.
type Relay interface {
	Set(energized bool)
}

// Appender persists one record. The controller never retries a failed
// append; persistence is best-effort.
type Appender interface {
	Append(Record) error
}

// Emitter reports one record, fire-and-forget with no backpressure.
type Emitter interface {
	Emit(Record)
}

// Params holds the compile-time tuning of the pipeline. All intervals are in
// microseconds of monotonic time.
type Params struct {
	BiasVoltage float64 // ADC bias the CT signal is centered on (V)
	Gain        float64 // CT transfer gain (A per V of offset)
	NoiseFloor  float64 // RMS results below this clamp to 0.0 (A)

	SampleInterval uint64 // Minimum spacing between raw samples (us)
	Window         uint64 // Accumulated sample time that closes an RMS window (us)
	ReportInterval uint64 // Reporting epoch, wall-clock (us)

	LowThreshold  float64 // Heating engages below this temperature (C)
	HighThreshold float64 // Heating releases above this temperature (C)
}

// DefaultParams returns the tuning used by the reference hardware: a 30 A/V
// current transformer biased at mid-rail, 1 ms sampling, 20 ms RMS windows,
// 200 ms reporting epochs, and the mesophilic band 32-37 C.
func DefaultParams() Params {
	return Params{
		BiasVoltage:    1.65,
		Gain:           30.0,
		NoiseFloor:     0.1,
		SampleInterval: 1_000,
		Window:         20_000,
		ReportInterval: 200_000,
		LowThreshold:   32.0,
		HighThreshold:  37.0,
	}
}

// rmsWindow accumulates sum-of-squares of instantaneous current weighted by
// elapsed time. Both fields are reset together when the window closes.
type rmsWindow struct {
	sumSquares float64 // Sum of current^2 * dt (A^2 * s)
	elapsedUS  uint64  // Accumulated sample time (us)
}

func (w *rmsWindow) add(current float64, dtMicros uint64) {
	w.sumSquares += current * current * (float64(dtMicros) / 1e6)
	w.elapsedUS += dtMicros
}

// close computes the RMS over the accumulated window and resets it. The
// elapsed-time accumulator, not wall-clock time, decides when a window is
// due, so closure is robust to loop jitter.
func (w *rmsWindow) close() float64 {
	rms := math.Sqrt(w.sumSquares / (float64(w.elapsedUS) / 1e6))
	w.sumSquares = 0
	w.elapsedUS = 0
	return rms
}

// accumulator averages closed RMS samples over one reporting epoch.
type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.count++
}

// drain returns the mean of the accumulated samples and resets the
// accumulator. An empty accumulator drains to 0.0, matching the reference
// firmware: an epoch without a closed window reports zero current rather
// than repeating the previous average.
func (a *accumulator) drain() float64 {
	if a.count == 0 {
		a.sum = 0
		return 0.0
	}
	avg := a.sum / float64(a.count)
	a.sum = 0
	a.count = 0
	return avg
}

// Controller owns all mutable pipeline state and runs the three polled
// timers. It is single-threaded: Tick must always be called from the same
// goroutine (or the firmware main loop). Within one Tick the stages run in
// fixed order - sampler, reducer, reporter - so a window closed by the
// current sample is visible to the reporter draining the epoch.
type Controller struct {
	params Params

	adc      ADC
	temp     Thermometer
	relay    Relay
	appender Appender
	emitter  Emitter

	thermostat *Thermostat
	window     rmsWindow
	avg        accumulator

	// Monotonic microsecond timestamps. All arithmetic on these is unsigned
	// subtraction so the math survives counter wrap.
	startUS      uint64
	lastSampleUS uint64
	lastReportUS uint64
	started      bool

	lastRecord Record
	reports    uint64
	appendErrs uint64
}

// New creates a controller wired to its collaborators. Any of appender and
// emitter may be nil when that output is not needed.
func New(p Params, adc ADC, temp Thermometer, relay Relay, appender Appender, emitter Emitter) *Controller {
	return &Controller{
		params:     p,
		adc:        adc,
		temp:       temp,
		relay:      relay,
		appender:   appender,
		emitter:    emitter,
		thermostat: NewThermostat(p.LowThreshold, p.HighThreshold),
	}
}

// Tick runs one iteration of the control loop at the given monotonic time in
// microseconds. The first call arms the timers and performs no work. Tick
// never blocks.
func (c *Controller) Tick(nowUS uint64) {
	if !c.started {
		c.started = true
		c.startUS = nowUS
		c.lastSampleUS = nowUS
		c.lastReportUS = nowUS
		return
	}

	c.sample(nowUS)
	c.reduce()
	c.report(nowUS)
}

// sample reads the instantaneous current and folds it into the RMS window.
// The actual elapsed time weights the contribution, not the nominal sample
// interval, so loop jitter does not bias the integral.
func (c *Controller) sample(nowUS uint64) {
	dt := nowUS - c.lastSampleUS
	if dt < c.params.SampleInterval {
		return
	}
	c.lastSampleUS = nowUS

	current := (c.adc.ReadVoltage() - c.params.BiasVoltage) * c.params.Gain
	c.window.add(current, dt)
}

// reduce closes the RMS window once its accumulated sample time satisfies
// the window length, applies the noise floor, and feeds the averaging
// accumulator.
func (c *Controller) reduce() {
	if c.window.elapsedUS < c.params.Window {
		return
	}

	rms := c.window.close()
	if rms < c.params.NoiseFloor {
		rms = 0.0
	}
	c.avg.add(rms)
}

// report drains the epoch, evaluates the thermostat, and hands the record to
// both outputs. Output failures are counted and otherwise ignored; the
// pipeline continues regardless.
func (c *Controller) report(nowUS uint64) {
	if nowUS-c.lastReportUS < c.params.ReportInterval {
		return
	}
	c.lastReportUS = nowUS

	current := c.avg.drain()
	temperature := c.temp.ReadTemperature()

	state, changed := c.thermostat.Update(temperature)
	if changed && c.relay != nil {
		c.relay.Set(state == Heating)
	}

	elapsed := nowUS - c.startUS
	rec := Record{
		Millis:      elapsed / 1_000,
		Seconds:     elapsed / 1_000_000,
		Current:     current,
		Temperature: temperature,
		Heating:     state == Heating,
	}

	if c.emitter != nil {
		c.emitter.Emit(rec)
	}
	if c.appender != nil {
		if err := c.appender.Append(rec); err != nil {
			c.appendErrs++
		}
	}

	c.lastRecord = rec
	c.reports++
}

// LastRecord returns the most recent report, if any.
func (c *Controller) LastRecord() (Record, bool) {
	return c.lastRecord, c.reports > 0
}

// Reports returns the number of reporting epochs completed.
func (c *Controller) Reports() uint64 {
	return c.reports
}

// AppendFailures returns the number of records the appender rejected.
func (c *Controller) AppendFailures() uint64 {
	return c.appendErrs
}

// HeaterState returns the thermostat's current state.
func (c *Controller) HeaterState() HeaterState {
	return c.thermostat.State()
}

package pipeline

// HeaterState is the discrete state of the heater relay.
type HeaterState uint8

const (
	// Idle means the relay is de-energized.
	Idle HeaterState = iota
	// Heating means the relay is energized.
	Heating
)

// String returns the record token for the state.
func (s HeaterState) String() string {
	if s == Heating {
		return "ON"
	}
	return "OFF"
}

// Thermostat is a two-state hysteresis controller. The dead band between the
// low and high thresholds prevents relay chatter: the state switches at most
// once per threshold crossing and is held for any temperature inside the band.
//
// Transitions:
//   - Idle -> Heating when temperature < low
//   - Heating -> Idle when temperature > high
type Thermostat struct {
	low   float64
	high  float64
	state HeaterState
}

// NewThermostat creates a thermostat starting in Idle.
func NewThermostat(low, high float64) *Thermostat {
	return &Thermostat{
		low:   low,
		high:  high,
		state: Idle,
	}
}

// Update evaluates one temperature reading and returns the resulting state
// and whether it changed. The caller must toggle the relay only when changed
// is true, so the physical side effect happens once per edge, not per tick.
func (t *Thermostat) Update(temperature float64) (HeaterState, bool) {
	switch t.state {
	case Idle:
		if temperature < t.low {
			t.state = Heating
			return t.state, true
		}
	case Heating:
		if temperature > t.high {
			t.state = Idle
			return t.state, true
		}
	}
	return t.state, false
}

// State returns the current state without evaluating a reading.
func (t *Thermostat) State() HeaterState {
	return t.state
}

package tts

import "fmt"

// Control is a numeric generation parameter with a declared valid
// interval. The set of recognized controls is fixed; the dispatcher
// rejects values outside their interval rather than forwarding them.
type Control struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// The recognized controls and their intervals.
var (
	ControlExaggeration = Control{Name: "exaggeration", Min: 0, Max: 1, Default: 0.5}
	ControlCFGWeight    = Control{Name: "cfg_weight", Min: 0.1, Max: 1, Default: 0.5}
	ControlTemperature  = Control{Name: "temperature", Min: 0.05, Max: 5, Default: 0.7}
	ControlSpeedFactor  = Control{Name: "speed_factor", Min: 0.5, Max: 2, Default: 1.0}
)

// Controls returns every recognized control in a stable order.
func Controls() []Control {
	return []Control{
		ControlExaggeration,
		ControlCFGWeight,
		ControlTemperature,
		ControlSpeedFactor,
	}
}

// Check returns a ValidationError naming the control when value lies
// outside its interval.
func (c Control) Check(value float64) error {
	if value < c.Min || value > c.Max {
		return &ValidationError{
			Field:  c.Name,
			Reason: fmt.Sprintf("%g out of range [%g, %g]", value, c.Min, c.Max),
		}
	}
	return nil
}

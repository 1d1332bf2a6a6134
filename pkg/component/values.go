package component

import (
	"fmt"
	"time"

	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
)

// Values holds resolved datapoints keyed by field name.
type Values map[string]datapoint.Datapoint

func (v Values) Get(name string) (datapoint.Datapoint, bool) {
	d, ok := v[name]
	return d, ok
}

// Has reports whether name is present with a non-absent value.
func (v Values) Has(name string) bool {
	d, ok := v[name]
	return ok && !d.Value.IsAbsent()
}

func (v Values) Float(name string) (float64, units.Unit, error) {
	d, ok := v[name]
	if !ok {
		return 0, units.None, fmt.Errorf("%s is not set", name)
	}
	f, err := d.Numeric()
	if err != nil {
		return 0, units.None, fmt.Errorf("%s: %w", name, err)
	}
	return f, d.Unit, nil
}

func (v Values) Text(name string) (string, error) {
	d, ok := v[name]
	if !ok {
		return "", fmt.Errorf("%s is not set", name)
	}
	s, ok := d.Value.Text()
	if !ok {
		return "", fmt.Errorf("%s: expected text value, got %s", name, d.Value.Kind())
	}
	return s, nil
}

func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, d := range v {
		out[k] = d
	}
	return out
}

// Context is the fully resolved state handed to every calculation of one run.
type Context struct {
	ComponentID string
	Config      Values
	Inputs      Values
	Now         time.Time
}

// Preparation is handed to a behavior after its configuration has been resolved.
type Preparation struct {
	ComponentID string
	Config      Values
	// Model is the decoded config model or nil when the type declares none.
	Model   any
	Inputs  []string
	Outputs []string
}

// Behavior is the type specific part of a component.
type Behavior interface {
	Prepare(Preparation) error
}

// CalculationFunc computes one output field.
type CalculationFunc func(Behavior, *Context) (datapoint.Value, units.Unit, error)

// Bind adapts a method expression such as (*Controller).controlSignal into a CalculationFunc.
func Bind[B Behavior](fn func(B, *Context) (datapoint.Value, units.Unit, error)) CalculationFunc {
	return func(b Behavior, c *Context) (datapoint.Value, units.Unit, error) {
		typed, ok := b.(B)
		if !ok {
			var want B
			return datapoint.Absent(), units.None, fmt.Errorf("calculation for %T called with %T", want, b)
		}
		return fn(typed, c)
	}
}

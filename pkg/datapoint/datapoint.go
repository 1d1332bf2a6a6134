package datapoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nergy-se/controlkit/pkg/units"
)

// Datapoint is the value, unit and timestamp envelope used for inputs, outputs, config and static data.
type Datapoint struct {
	Value Value      `json:"value"`
	Unit  units.Unit `json:"unit,omitempty"`
	Time  *time.Time `json:"time,omitempty"`
}

func New(v Value, u units.Unit) Datapoint {
	return Datapoint{Value: v, Unit: u}
}

// Numeric returns the scalar value of d.
func (d Datapoint) Numeric() (float64, error) {
	f, ok := d.Value.Float()
	if !ok {
		return 0, fmt.Errorf("expected numeric value, got %s", d.Value.Kind())
	}
	return f, nil
}

// ConvertTo rewrites d into unit u. Only numeric datapoints can be converted.
func (d Datapoint) ConvertTo(u units.Unit) (Datapoint, error) {
	if d.Unit == u {
		return d, nil
	}
	factor, ok := units.Factor(d.Unit, u)
	if !ok {
		return d, fmt.Errorf("%w: %q to %q", units.ErrNotConvertible, d.Unit, u)
	}
	v, err := d.Value.Scale(factor)
	if err != nil {
		return d, err
	}
	d.Value = v
	d.Unit = u
	return d, nil
}

// Allocation points a component field at one attribute of one entity.
type Allocation struct {
	Entity    string     `json:"entity"`
	Attribute string     `json:"attribute"`
	Default   Value      `json:"default"`
	Unit      units.Unit `json:"unit,omitempty"`
}

func (a Allocation) HasDefault() bool {
	return !a.Default.IsAbsent()
}

func (a Allocation) Validate() error {
	if a.Entity == "" {
		return errors.New("allocation is missing entity")
	}
	if a.Attribute == "" {
		return fmt.Errorf("allocation for entity %s is missing attribute", a.Entity)
	}
	return nil
}

func (a Allocation) String() string {
	return a.Entity + "/" + a.Attribute
}

// ConfigEntry is either an allocation into static data or a literal datapoint.
type ConfigEntry struct {
	Allocation *Allocation
	Literal    *Datapoint
}

func LiteralEntry(v Value, u units.Unit) ConfigEntry {
	d := New(v, u)
	return ConfigEntry{Literal: &d}
}

func AllocationEntry(a Allocation) ConfigEntry {
	return ConfigEntry{Allocation: &a}
}

func (c ConfigEntry) IsAllocation() bool {
	return c.Allocation != nil
}

func (c ConfigEntry) MarshalJSON() ([]byte, error) {
	if c.Allocation != nil {
		return json.Marshal(c.Allocation)
	}
	if c.Literal != nil {
		return json.Marshal(c.Literal)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts an allocation object, a {"value", "unit"} literal or a bare value.
func (c *ConfigEntry) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keys); err != nil {
			return err
		}
		_, hasEntity := keys["entity"]
		_, hasAttribute := keys["attribute"]
		if hasEntity && hasAttribute {
			a := &Allocation{}
			if err := json.Unmarshal(trimmed, a); err != nil {
				return fmt.Errorf("invalid allocation: %w", err)
			}
			*c = ConfigEntry{Allocation: a}
			return nil
		}
		if _, ok := keys["value"]; ok {
			d := &Datapoint{}
			if err := json.Unmarshal(trimmed, d); err != nil {
				return fmt.Errorf("invalid literal: %w", err)
			}
			*c = ConfigEntry{Literal: d}
			return nil
		}
	}

	var v Value
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*c = ConfigEntry{Literal: &Datapoint{Value: v}}
	return nil
}

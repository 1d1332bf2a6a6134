// Package twopoint implements a two-point (on/off) controller with hysteresis.
package twopoint

import (
	"fmt"

	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
)

const Type = "two_point_controller"

const (
	InputCurrentValue        = "current_value"
	InputLatestControlSignal = "latest_control_signal"
	OutputControlSignal      = "control_signal"

	ConfigHysteresis      = "hysteresis"
	ConfigSetpoint        = "setpoint"
	ConfigCommandEnabled  = "command_enabled"
	ConfigCommandDisabled = "command_disabled"
)

func Descriptor() component.Descriptor {
	return component.Descriptor{
		Type: Type,
		New:  func() component.Behavior { return &Controller{} },
		Input: component.InputSchema{Fields: []component.InputField{
			{Name: InputCurrentValue, Description: "controlled value, typically a sensor reading", Required: true, Numeric: true},
			{Name: InputLatestControlSignal, Description: "control signal emitted in the previous cycle", Required: true, Numeric: true},
		}},
		Output: component.OutputSchema{Fields: []component.OutputField{
			{Name: OutputControlSignal, Required: true, Calculation: component.Bind((*Controller).controlSignal)},
		}},
		Config: component.ConfigSchema{Fields: []component.ConfigField{
			{Name: ConfigHysteresis, Required: true, Numeric: true, Validate: nonNegative},
			{Name: ConfigSetpoint, Required: true, Numeric: true},
			{Name: ConfigCommandEnabled, Required: true, Numeric: true},
			{Name: ConfigCommandDisabled, Required: true, Numeric: true},
		}},
		StaticData: component.StaticDataSchema{Keys: []string{
			ConfigHysteresis,
			ConfigSetpoint,
			ConfigCommandEnabled,
			ConfigCommandDisabled,
		}},
	}
}

// Controller switches on below setpoint minus hysteresis and off above setpoint.
// Inside the band the previous command is held.
type Controller struct {
	hysteresis      float64
	setpoint        float64
	valueUnit       units.Unit
	commandEnabled  float64
	commandDisabled float64
	commandUnit     units.Unit
}

func (c *Controller) Prepare(p component.Preparation) error {
	var hysteresisUnit, disabledUnit units.Unit
	var err error
	if c.hysteresis, hysteresisUnit, err = p.Config.Float(ConfigHysteresis); err != nil {
		return err
	}
	if c.setpoint, c.valueUnit, err = p.Config.Float(ConfigSetpoint); err != nil {
		return err
	}
	if c.commandEnabled, c.commandUnit, err = p.Config.Float(ConfigCommandEnabled); err != nil {
		return err
	}
	if c.commandDisabled, disabledUnit, err = p.Config.Float(ConfigCommandDisabled); err != nil {
		return err
	}
	if hysteresisUnit != c.valueUnit {
		return fmt.Errorf("units of hysteresis (%q) and setpoint (%q) must be the same", hysteresisUnit, c.valueUnit)
	}
	if disabledUnit != c.commandUnit {
		return fmt.Errorf("units of command_enabled (%q) and command_disabled (%q) must be the same", c.commandUnit, disabledUnit)
	}
	return nil
}

func (c *Controller) controlSignal(ctx *component.Context) (datapoint.Value, units.Unit, error) {
	current, currentUnit, err := ctx.Inputs.Float(InputCurrentValue)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	latest, latestUnit, err := ctx.Inputs.Float(InputLatestControlSignal)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	if currentUnit != c.valueUnit {
		return datapoint.Absent(), units.None, fmt.Errorf("units of current_value (%q) and setpoint (%q) must be the same", currentUnit, c.valueUnit)
	}
	if latestUnit != c.commandUnit {
		return datapoint.Absent(), units.None, fmt.Errorf("units of latest_control_signal (%q) and commands (%q) must be the same", latestUnit, c.commandUnit)
	}
	return datapoint.Scalar(c.Decide(current, latest)), c.commandUnit, nil
}

// Decide returns the command for the current value given the previous command.
func (c *Controller) Decide(current, latest float64) float64 {
	switch {
	case current < c.setpoint-c.hysteresis:
		return c.commandEnabled
	case current > c.setpoint:
		return c.commandDisabled
	case latest == c.commandEnabled:
		return c.commandEnabled
	default:
		return c.commandDisabled
	}
}

func nonNegative(d datapoint.Datapoint) error {
	f, err := d.Numeric()
	if err != nil {
		return err
	}
	if f < 0 {
		return fmt.Errorf("hysteresis must not be negative")
	}
	return nil
}

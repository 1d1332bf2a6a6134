// Package thermalstorage estimates state of charge and energy content of a
// stratified thermal storage tank from up to five temperature sensors.
package thermalstorage

import (
	"errors"
	"fmt"
	"math"

	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/medium"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/sirupsen/logrus"
)

const Type = "thermal_storage"

const (
	OutputLevel         = "storage__level"
	OutputEnergy        = "storage__energy"
	OutputNominalEnergy = "storage__nominal_energy"
	OutputEnergyMinimum = "storage__energy_minimum"
	OutputEnergyMaximum = "storage__energy_maximum"

	ConfigVolume       = "volume"
	ConfigMedium       = "medium"
	ConfigSensorConfig = "sensor_config"
	// ConfigTemperatureCorrection evaluates the medium parameters at the mean
	// temperature of every energy span instead of using constants.
	ConfigTemperatureCorrection = "temperature_correction"

	maxSensors = 5
)

func Descriptor() component.Descriptor {
	inputs := make([]component.InputField, 0, maxSensors)
	for i := 1; i <= maxSensors; i++ {
		inputs = append(inputs, component.InputField{
			Name:        fmt.Sprintf("temperature_%d", i),
			Description: fmt.Sprintf("temperature of sensor %d counted from the top", i),
			Required:    i == 1,
			Numeric:     true,
			Unit:        units.DegreeCelsius,
		})
	}

	return component.Descriptor{
		Type:  Type,
		New:   func() component.Behavior { return &Storage{} },
		Input: component.InputSchema{Fields: inputs},
		Output: component.OutputSchema{Fields: []component.OutputField{
			{Name: OutputLevel, Description: "state of charge", Unit: units.Percent, Calculation: component.Bind((*Storage).level)},
			{Name: OutputEnergy, Description: "usable energy content", Unit: units.WattHour, Calculation: component.Bind((*Storage).energy)},
			{Name: OutputNominalEnergy, Unit: units.WattHour, Calculation: component.Bind((*Storage).nominalEnergy)},
			{Name: OutputEnergyMinimum, Unit: units.WattHour, Calculation: component.Bind((*Storage).energyMinimum)},
			{Name: OutputEnergyMaximum, Unit: units.WattHour, Calculation: component.Bind((*Storage).energyMaximum)},
		}},
		Config: component.ConfigSchema{
			Fields: []component.ConfigField{
				{Name: ConfigVolume, Description: "volume of the tank", Required: true, Numeric: true, Unit: units.CubicMetre},
				{Name: ConfigMedium, Kinds: []datapoint.Kind{datapoint.KindText}, Default: datapoint.Text(string(medium.Water))},
				{Name: ConfigSensorConfig, Required: true, Kinds: []datapoint.Kind{datapoint.KindList}},
				{Name: ConfigTemperatureCorrection, Kinds: []datapoint.Kind{datapoint.KindBoolean}, Default: datapoint.Bool(false)},
			},
			Model: func() any { return &Config{} },
		},
		StaticData: component.StaticDataSchema{Keys: []string{ConfigVolume, ConfigSensorConfig}},
	}
}

type Limits struct {
	Minimal   float64 `mapstructure:"minimal_temperature"`
	Maximal   float64 `mapstructure:"maximal_temperature"`
	Reference float64 `mapstructure:"reference_temperature"`
}

type Sensor struct {
	// Name is the input field the sensor is read from, e.g. temperature_1.
	Name string `mapstructure:"name"`
	// Height in percent of the tank height measured from the top.
	Height float64 `mapstructure:"height"`
	Limits Limits  `mapstructure:"limits"`
}

type Config struct {
	Volume  float64  `mapstructure:"volume"`
	Medium  string   `mapstructure:"medium"`
	Sensors []Sensor `mapstructure:"sensor_config"`

	TemperatureCorrection bool `mapstructure:"temperature_correction"`
}

func (c *Config) Validate() error {
	if c.Volume <= 0 {
		return errors.New("volume must be positive")
	}
	if !medium.Medium(c.Medium).Valid() {
		return fmt.Errorf("unknown medium %q", c.Medium)
	}
	if len(c.Sensors) == 0 || len(c.Sensors) > maxSensors {
		return fmt.Errorf("between 1 and %d sensors must be configured, got %d", maxSensors, len(c.Sensors))
	}
	seen := make(map[string]bool)
	for i, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensor %d has no name", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("sensor %s configured twice", s.Name)
		}
		seen[s.Name] = true
		if s.Height < 0 || s.Height > 100 {
			return fmt.Errorf("height of sensor %s must be within 0 and 100 percent", s.Name)
		}
		if i > 0 && s.Height <= c.Sensors[i-1].Height {
			return fmt.Errorf("sensors must be ordered from top to bottom, %s is above %s", s.Name, c.Sensors[i-1].Name)
		}
		if s.Limits.Minimal >= s.Limits.Maximal {
			return fmt.Errorf("minimal temperature of sensor %s must be below its maximal temperature", s.Name)
		}
	}
	return nil
}

// Storage is a tank split into one horizontal slice per sensor.
type Storage struct {
	cfg     Config
	params  medium.Parameters
	volumes []float64

	nominal float64
	minimum float64
	maximum float64
}

func (s *Storage) Prepare(p component.Preparation) error {
	cfg, ok := p.Model.(*Config)
	if !ok {
		return fmt.Errorf("unexpected config model %T", p.Model)
	}
	params, err := medium.Get(medium.Medium(cfg.Medium))
	if err != nil {
		return err
	}

	wired := make(map[string]bool, len(p.Inputs))
	for _, in := range p.Inputs {
		wired[in] = true
	}
	used := make(map[string]bool, len(cfg.Sensors))
	for _, sensor := range cfg.Sensors {
		if !wired[sensor.Name] {
			return fmt.Errorf("sensor %s has no configured input", sensor.Name)
		}
		used[sensor.Name] = true
	}
	for _, in := range p.Inputs {
		if !used[in] {
			logrus.WithFields(logrus.Fields{
				"component": p.ComponentID,
				"input":     in,
			}).Warn("input is not used by any sensor")
		}
	}

	s.cfg = *cfg
	s.params = params
	s.volumes = sliceVolumes(cfg.Sensors, cfg.Volume)

	if s.nominal, err = s.energyBetween(func(l Limits) (float64, float64) { return l.Minimal, l.Maximal }); err != nil {
		return err
	}
	if s.minimum, err = s.energyBetween(func(l Limits) (float64, float64) { return l.Reference, l.Minimal }); err != nil {
		return err
	}
	if s.maximum, err = s.energyBetween(func(l Limits) (float64, float64) { return l.Reference, l.Maximal }); err != nil {
		return err
	}
	return nil
}

// sliceVolumes assigns each sensor the volume between the midpoints to its neighbours.
// The first slice starts at the top and the last one ends at the bottom.
func sliceVolumes(sensors []Sensor, volume float64) []float64 {
	out := make([]float64, len(sensors))
	previous := 0.0
	for i := range sensors {
		next := 100.0
		if i < len(sensors)-1 {
			next = (sensors[i].Height + sensors[i+1].Height) / 2
		}
		out[i] = round((next-previous)/100*volume, 3)
		previous = next
	}
	return out
}

// StateOfCharge returns the state of charge in percent for the given sensor temperatures.
func (s *Storage) StateOfCharge(temperatures []float64) (float64, error) {
	if len(temperatures) != len(s.cfg.Sensors) {
		return 0, fmt.Errorf("expected %d temperatures, got %d", len(s.cfg.Sensors), len(temperatures))
	}
	sum := 0.0
	for i, sensor := range s.cfg.Sensors {
		l := sensor.Limits
		sum += (temperatures[i] - l.Minimal) / (l.Maximal - l.Minimal) * s.volumes[i]
	}
	soc := math.Max(sum/s.cfg.Volume*100, 0)

	// a cold top sensor means there is no usable energy left
	top := s.cfg.Sensors[0].Limits
	threshold := top.Minimal + (top.Maximal-top.Minimal)*0.1
	switch {
	case temperatures[0] < top.Minimal:
		soc = 0
	case temperatures[0] < threshold:
		soc = (temperatures[0] - top.Minimal) / (top.Maximal - top.Minimal) * 100
	}
	return round(soc, 2), nil
}

// NominalEnergy is the energy in Wh between the minimal and maximal temperatures of all slices.
func (s *Storage) NominalEnergy() float64 {
	return s.nominal
}

// EnergyMinimum is the energy in Wh at minimal temperatures relative to the reference temperatures.
func (s *Storage) EnergyMinimum() float64 {
	return s.minimum
}

// EnergyMaximum is the energy in Wh at maximal temperatures relative to the reference temperatures.
func (s *Storage) EnergyMaximum() float64 {
	return s.maximum
}

// energyBetween sums the energy of every slice heated from the low to the high
// temperature returned by span.
func (s *Storage) energyBetween(span func(Limits) (low, high float64)) (float64, error) {
	sum := 0.0
	for i, sensor := range s.cfg.Sensors {
		low, high := span(sensor.Limits)
		params := s.params
		if s.cfg.TemperatureCorrection {
			var err error
			params, err = medium.At(medium.Medium(s.cfg.Medium), (low+high)/2)
			if err != nil {
				return 0, fmt.Errorf("sensor %s: %w", sensor.Name, err)
			}
		}
		sum += (high - low) * s.volumes[i] * params.Rho * params.Cp
	}
	// kJ to Wh
	return round(sum/3.6, 2), nil
}

func (s *Storage) temperatures(ctx *component.Context) ([]float64, error) {
	out := make([]float64, len(s.cfg.Sensors))
	for i, sensor := range s.cfg.Sensors {
		t, u, err := ctx.Inputs.Float(sensor.Name)
		if err != nil {
			return nil, err
		}
		if u != units.DegreeCelsius {
			return nil, fmt.Errorf("temperature %s must be in %s, got %q", sensor.Name, units.DegreeCelsius, u)
		}
		out[i] = t
	}
	return out, nil
}

func (s *Storage) level(ctx *component.Context) (datapoint.Value, units.Unit, error) {
	temps, err := s.temperatures(ctx)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	soc, err := s.StateOfCharge(temps)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	return datapoint.Scalar(soc), units.Percent, nil
}

func (s *Storage) energy(ctx *component.Context) (datapoint.Value, units.Unit, error) {
	temps, err := s.temperatures(ctx)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	soc, err := s.StateOfCharge(temps)
	if err != nil {
		return datapoint.Absent(), units.None, err
	}
	return datapoint.Scalar(round(soc/100*s.NominalEnergy(), 2)), units.WattHour, nil
}

func (s *Storage) nominalEnergy(*component.Context) (datapoint.Value, units.Unit, error) {
	return datapoint.Scalar(s.NominalEnergy()), units.WattHour, nil
}

func (s *Storage) energyMinimum(*component.Context) (datapoint.Value, units.Unit, error) {
	return datapoint.Scalar(s.EnergyMinimum()), units.WattHour, nil
}

func (s *Storage) energyMaximum(*component.Context) (datapoint.Value, units.Unit, error) {
	return datapoint.Scalar(s.EnergyMaximum()), units.WattHour, nil
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
)

// ServiceConfig is the JSON document describing interfaces, entities and components of a service.
type ServiceConfig struct {
	Interfaces           Interfaces         `json:"interfaces"`
	Inputs               []Entity           `json:"inputs"`
	Outputs              []Entity           `json:"outputs"`
	StaticData           []Entity           `json:"staticdata"`
	Metadata             []any              `json:"metadata,omitempty"`
	ControllerComponents []component.Config `json:"controller_components"`
	ControllerSettings   ControllerSettings `json:"controller_settings"`
}

// Interfaces enables the external interfaces used by the service.
type Interfaces struct {
	File   bool `json:"file"`
	MQTT   bool `json:"mqtt"`
	Fiware bool `json:"fiware"`
	Modbus bool `json:"modbus"`
	Mbus   bool `json:"mbus"`
}

func (i Interfaces) Enabled(t types.Interface) bool {
	switch t {
	case types.InterfaceFile:
		return i.File
	case types.InterfaceMQTT:
		return i.MQTT
	case types.InterfaceFiware:
		return i.Fiware
	case types.InterfaceModbus:
		return i.Modbus
	case types.InterfaceMbus:
		return i.Mbus
	}
	return false
}

type Entity struct {
	ID          string          `json:"id"`
	Interface   types.Interface `json:"interface"`
	IDInterface string          `json:"id_interface"`
	Attributes  []Attribute     `json:"attributes"`
}

// InterfaceID is the id of the entity on its interface, defaulting to ID.
func (e Entity) InterfaceID() string {
	if e.IDInterface != "" {
		return e.IDInterface
	}
	return e.ID
}

func (e Entity) Attribute(id string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

type Attribute struct {
	ID          string              `json:"id"`
	IDInterface string              `json:"id_interface"`
	Type        types.AttributeType `json:"type"`
	// Value is used until the interface delivers data.
	Value datapoint.Value `json:"value"`
	Unit  units.Unit      `json:"unit,omitempty"`
	// Scale multiplies raw register values. Zero means 1.
	Scale float64 `json:"scale,omitempty"`
}

func (a Attribute) InterfaceID() string {
	if a.IDInterface != "" {
		return a.IDInterface
	}
	return a.ID
}

func (a Attribute) ScaleFactor() float64 {
	if a.Scale == 0 {
		return 1
	}
	return a.Scale
}

type ControllerSettings struct {
	TimeSettings TimeSettings `json:"time_settings"`
}

type TimeSettings struct {
	Calculation Timing  `json:"calculation"`
	Calibration *Timing `json:"calibration,omitempty"`
}

type Timing struct {
	SamplingTime     float64        `json:"sampling_time"`
	SamplingTimeUnit units.TimeUnit `json:"sampling_time_unit"`
}

// Interval returns the sampling time as a duration. The unit defaults to seconds.
func (t Timing) Interval() (time.Duration, error) {
	unit := t.SamplingTimeUnit
	if unit == "" {
		unit = units.TimeSecond
	}
	if t.SamplingTime <= 0 {
		return 0, fmt.Errorf("sampling_time must be positive, got %v", t.SamplingTime)
	}
	return unit.Duration(t.SamplingTime)
}

func LoadServiceConfig(path string) (*ServiceConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening service config: %w", err)
	}
	defer f.Close()
	c, err := ParseServiceConfig(f)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", path, err)
	}
	return c, nil
}

func ParseServiceConfig(r io.Reader) (*ServiceConfig, error) {
	c := &ServiceConfig{}
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that ids are unique, interfaces are enabled and components only
// reference declared entities and attributes.
func (c *ServiceConfig) Validate() error {
	seen := make(map[string]bool)
	for _, group := range [][]Entity{c.Inputs, c.Outputs, c.StaticData} {
		for _, e := range group {
			if e.ID == "" {
				return fmt.Errorf("entity without id")
			}
			if seen[e.ID] {
				return fmt.Errorf("entity %s declared twice", e.ID)
			}
			seen[e.ID] = true
			if !e.Interface.Valid() {
				return fmt.Errorf("entity %s has unknown interface %q", e.ID, e.Interface)
			}
			if !c.Interfaces.Enabled(e.Interface) {
				return fmt.Errorf("entity %s uses interface %s which is not enabled", e.ID, e.Interface)
			}
		}
	}

	if _, err := c.ControllerSettings.TimeSettings.Calculation.Interval(); err != nil {
		return fmt.Errorf("calculation: %w", err)
	}
	if cal := c.ControllerSettings.TimeSettings.Calibration; cal != nil {
		if _, err := cal.Interval(); err != nil {
			return fmt.Errorf("calibration: %w", err)
		}
	}

	ids := make(map[string]bool)
	readable := append(append([]Entity{}, c.Inputs...), c.StaticData...)
	for _, comp := range c.ControllerComponents {
		if err := comp.Validate(); err != nil {
			return err
		}
		if ids[comp.ID] {
			return fmt.Errorf("component %s declared twice", comp.ID)
		}
		ids[comp.ID] = true
		for name, a := range comp.Inputs {
			if err := checkReference(readable, a); err != nil {
				return fmt.Errorf("component %s input %s: %w", comp.ID, name, err)
			}
		}
		for name, a := range comp.Outputs {
			if err := checkReference(c.Outputs, a); err != nil {
				return fmt.Errorf("component %s output %s: %w", comp.ID, name, err)
			}
		}
		for name, entry := range comp.Config {
			if entry.Allocation == nil {
				continue
			}
			if err := checkReference(c.StaticData, *entry.Allocation); err != nil {
				return fmt.Errorf("component %s config %s: %w", comp.ID, name, err)
			}
		}
	}
	return nil
}

func checkReference(entities []Entity, a datapoint.Allocation) error {
	for _, e := range entities {
		if e.ID != a.Entity {
			continue
		}
		if _, ok := e.Attribute(a.Attribute); ok {
			return nil
		}
		return fmt.Errorf("entity %s has no attribute %s", a.Entity, a.Attribute)
	}
	return fmt.Errorf("entity %s is not declared", a.Entity)
}

// Entity returns the entity with the given id from inputs, outputs or static data.
func (c *ServiceConfig) Entity(id string) (Entity, bool) {
	for _, group := range [][]Entity{c.Inputs, c.Outputs, c.StaticData} {
		for _, e := range group {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entity{}, false
}

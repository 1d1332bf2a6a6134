package component

import (
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
)

type SchemaKind int

const (
	SchemaInput SchemaKind = iota
	SchemaOutput
	SchemaConfig
	SchemaStaticData
)

func (k SchemaKind) suffix() string {
	switch k {
	case SchemaInput:
		return "InputData"
	case SchemaOutput:
		return "OutputData"
	case SchemaConfig:
		return "ConfigData"
	case SchemaStaticData:
		return "StaticData"
	}
	return "Unknown"
}

func (k SchemaKind) String() string {
	switch k {
	case SchemaInput:
		return "input"
	case SchemaOutput:
		return "output"
	case SchemaConfig:
		return "config"
	case SchemaStaticData:
		return "static data"
	}
	return "unknown"
}

// Schema is implemented by the four schema kinds of a component type.
type Schema interface {
	Kind() SchemaKind
	FieldNames() []string
}

type InputField struct {
	Name        string
	Description string
	Required    bool
	// Numeric fields must hold a scalar after default substitution.
	Numeric bool
	Default datapoint.Value
	Unit    units.Unit
}

type InputSchema struct {
	Fields []InputField
}

func (InputSchema) Kind() SchemaKind { return SchemaInput }

func (s InputSchema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

type OutputField struct {
	Name        string
	Description string
	Required    bool
	// Unit labels results whose calculation returns no unit.
	Unit units.Unit
	// Calculation produces the field. Fields without one are never computed.
	Calculation CalculationFunc
}

type OutputSchema struct {
	Fields []OutputField
}

func (OutputSchema) Kind() SchemaKind { return SchemaOutput }

func (s OutputSchema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

type ConfigField struct {
	Name        string
	Description string
	Required    bool
	Numeric     bool
	// Kinds restricts the accepted value kinds. Empty accepts any kind.
	Kinds   []datapoint.Kind
	Default datapoint.Value
	// Unit is the unit the resolved value is converted to.
	Unit     units.Unit
	Validate func(datapoint.Datapoint) error
}

type ConfigSchema struct {
	Fields []ConfigField
	// Model returns a pointer to a struct the resolved values are decoded into.
	// If it implements interface{ Validate() error } it is validated as a whole.
	Model func() any
}

func (ConfigSchema) Kind() SchemaKind { return SchemaConfig }

func (s ConfigSchema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// StaticDataSchema enumerates the static data keys a component type can be configured from.
type StaticDataSchema struct {
	Keys []string
}

func (StaticDataSchema) Kind() SchemaKind { return SchemaStaticData }

func (s StaticDataSchema) FieldNames() []string {
	return append([]string(nil), s.Keys...)
}

// Descriptor is everything the engine needs to know about a component type.
type Descriptor struct {
	Type       string
	New        func() Behavior
	Input      InputSchema
	Output     OutputSchema
	Config     ConfigSchema
	StaticData StaticDataSchema
}

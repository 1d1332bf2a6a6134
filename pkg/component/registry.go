package component

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var typeSegment = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry maps component type tags to their descriptors.
// Third-party packages register their types with a namespaced tag such as "vendor.heat_pump".
type Registry struct {
	descriptors map[string]Descriptor
	mutex       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds a component type. It fails on duplicate or malformed types and schemas.
func (r *Registry) Register(d Descriptor) error {
	if err := validateType(d.Type); err != nil {
		return err
	}
	if d.New == nil {
		return fmt.Errorf("component type %s has no behavior factory", d.Type)
	}
	if err := checkFieldNames(d.Type, SchemaInput, d.Input.FieldNames()); err != nil {
		return err
	}
	if err := checkFieldNames(d.Type, SchemaOutput, d.Output.FieldNames()); err != nil {
		return err
	}
	if err := checkFieldNames(d.Type, SchemaConfig, d.Config.FieldNames()); err != nil {
		return err
	}
	if err := checkFieldNames(d.Type, SchemaStaticData, d.StaticData.Keys); err != nil {
		return err
	}
	for _, f := range d.Output.Fields {
		if f.Calculation == nil {
			logrus.WithFields(logrus.Fields{
				"type":  d.Type,
				"field": f.Name,
			}).Warn("output field has no calculation and will never be computed")
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.descriptors[d.Type]; exists {
		return fmt.Errorf("component type %s already registered", d.Type)
	}
	r.descriptors[d.Type] = cloneDescriptor(d)
	return nil
}

// MustRegister is Register for package initialisation where a failure is a programming error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(componentType string) (Descriptor, error) {
	r.mutex.RLock()
	d, ok := r.descriptors[componentType]
	r.mutex.RUnlock()
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: component type %q is not registered", ErrLookup, componentType)
	}
	return d, nil
}

func (r *Registry) ResolveBehavior(componentType string) (func() Behavior, error) {
	d, err := r.Lookup(componentType)
	if err != nil {
		return nil, err
	}
	if d.New == nil {
		return nil, fmt.Errorf("%w: component type %q has no behavior", ErrLookup, componentType)
	}
	return d.New, nil
}

// ResolveSchema returns the schema of the given kind. A component type without
// static data keys returns a nil schema and no error.
func (r *Registry) ResolveSchema(componentType string, kind SchemaKind) (Schema, error) {
	d, err := r.Lookup(componentType)
	if err != nil {
		return nil, err
	}
	switch kind {
	case SchemaInput:
		return d.Input, nil
	case SchemaOutput:
		return d.Output, nil
	case SchemaConfig:
		return d.Config, nil
	case SchemaStaticData:
		if len(d.StaticData.Keys) == 0 {
			return nil, nil
		}
		return d.StaticData, nil
	}
	return nil, fmt.Errorf("%w: unknown schema kind %d for %s", ErrLookup, kind, SchemaName(componentType, kind))
}

// Types returns the registered type tags sorted.
func (r *Registry) Types() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]string, 0, len(r.descriptors))
	for t := range r.descriptors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseType splits "vendor.heat_pump" into namespace "vendor" and name "heat_pump".
// Built-in types have an empty namespace.
func ParseType(componentType string) (namespace, name string) {
	i := strings.LastIndex(componentType, ".")
	if i < 0 {
		return "", componentType
	}
	return componentType[:i], componentType[i+1:]
}

// SchemaName returns the conventional schema name, e.g. TwoPointControllerConfigData.
func SchemaName(componentType string, kind SchemaKind) string {
	_, name := ParseType(componentType)
	b := strings.Builder{}
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	b.WriteString(kind.suffix())
	return b.String()
}

func validateType(componentType string) error {
	if componentType == "" {
		return fmt.Errorf("component type is empty")
	}
	for _, segment := range strings.Split(componentType, ".") {
		if !typeSegment.MatchString(segment) {
			return fmt.Errorf("component type %q is not a dot separated snake_case name", componentType)
		}
	}
	return nil
}

func checkFieldNames(componentType string, kind SchemaKind, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !typeSegment.MatchString(n) {
			return fmt.Errorf("%s: field %q is not snake_case", SchemaName(componentType, kind), n)
		}
		if seen[n] {
			return fmt.Errorf("%s: field %q declared twice", SchemaName(componentType, kind), n)
		}
		seen[n] = true
	}
	return nil
}

func cloneDescriptor(d Descriptor) Descriptor {
	d.Input.Fields = append([]InputField(nil), d.Input.Fields...)
	d.Output.Fields = append([]OutputField(nil), d.Output.Fields...)
	d.Config.Fields = append([]ConfigField(nil), d.Config.Fields...)
	d.StaticData.Keys = append([]string(nil), d.StaticData.Keys...)
	return d
}

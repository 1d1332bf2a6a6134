package component

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/sirupsen/logrus"
)

type State int

const (
	StateConstructed State = iota
	StateConfigResolved
	StateReady
	StateRunning
	StateCalibrating
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateConfigResolved:
		return "config_resolved"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCalibrating:
		return "calibrating"
	}
	return "unknown"
}

// Component is one configured controller component. Calls to Run and Calibrate
// must be serialized by the caller.
type Component struct {
	cfg        Config
	descriptor Descriptor
	behavior   Behavior
	io         IOModel
	config     Values
	state      State
	log        *logrus.Entry
	now        func() time.Time
}

// New validates cfg against the schemas of its type, resolves its config data from
// static and prepares the behavior. static may be nil when no static data is available.
func New(reg *Registry, cfg Config, static []entity.Entity) (*Component, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := reg.Lookup(cfg.Type)
	if err != nil {
		return nil, &ValidationError{ComponentID: cfg.ID, Field: "type", Err: err}
	}

	c := &Component{
		cfg:        cfg,
		descriptor: d,
		state:      StateConstructed,
		now:        time.Now,
		log: logrus.WithFields(logrus.Fields{
			"component": cfg.ID,
			"type":      cfg.Type,
		}),
	}

	values, model, err := c.resolveConfig(static)
	if err != nil {
		c.log.Error(err)
		return nil, err
	}
	c.config = values
	c.state = StateConfigResolved

	io, err := c.prepareIO()
	if err != nil {
		c.log.Error(err)
		return nil, err
	}
	c.io = io

	behavior, err := c.prepareBehavior(values, model)
	if err != nil {
		c.log.Error(err)
		return nil, err
	}
	c.behavior = behavior
	c.state = StateReady
	return c, nil
}

func (c *Component) ID() string {
	return c.cfg.ID
}

func (c *Component) Type() string {
	return c.cfg.Type
}

func (c *Component) State() State {
	return c.state
}

// Config returns a copy of the resolved config data.
func (c *Component) Config() Values {
	return c.config.Clone()
}

func (c *Component) IO() IOModel {
	return c.io
}

func (c *Component) prepareIO() (IOModel, error) {
	io := IOModel{
		Inputs:  make(map[string]datapoint.Allocation),
		Outputs: make(map[string]datapoint.Allocation),
	}

	for _, f := range c.descriptor.Input.Fields {
		a, ok := c.cfg.Inputs[f.Name]
		if !ok {
			if f.Required {
				return io, validationErr(c.cfg.ID, f.Name, "required input is not configured in %s", SchemaName(c.cfg.Type, SchemaInput))
			}
			continue
		}
		if err := a.Validate(); err != nil {
			return io, &ValidationError{ComponentID: c.cfg.ID, Field: f.Name, Err: err}
		}
		if !a.HasDefault() && !f.Default.IsAbsent() {
			a.Default = f.Default
		}
		if a.Unit == units.None {
			a.Unit = f.Unit
		}
		io.Inputs[f.Name] = a
	}

	for _, f := range c.descriptor.Output.Fields {
		a, ok := c.cfg.Outputs[f.Name]
		if !ok {
			if f.Required {
				return io, validationErr(c.cfg.ID, f.Name, "required output is not configured in %s", SchemaName(c.cfg.Type, SchemaOutput))
			}
			continue
		}
		if err := a.Validate(); err != nil {
			return io, &ValidationError{ComponentID: c.cfg.ID, Field: f.Name, Err: err}
		}
		io.Outputs[f.Name] = a
	}

	c.warnUnknown("input", c.cfg.Inputs, c.descriptor.Input.FieldNames())
	c.warnUnknown("output", c.cfg.Outputs, c.descriptor.Output.FieldNames())
	return io, nil
}

func (c *Component) resolveConfig(static []entity.Entity) (Values, any, error) {
	values := make(Values)
	for _, f := range c.descriptor.Config.Fields {
		d, ok, err := c.resolveConfigField(f, static)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		values[f.Name] = d
	}
	c.warnUnknown("config", c.cfg.Config, c.descriptor.Config.FieldNames())

	if c.descriptor.Config.Model == nil {
		return values, nil, nil
	}
	model := c.descriptor.Config.Model()
	raw := make(map[string]any, len(values))
	for k, d := range values {
		raw[k] = d.Value.Interface()
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  model,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, nil, &ValidationError{ComponentID: c.cfg.ID, Err: err}
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, nil, &ValidationError{ComponentID: c.cfg.ID, Err: fmt.Errorf("%s: %w", SchemaName(c.cfg.Type, SchemaConfig), err)}
	}
	if v, ok := model.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, nil, &ValidationError{ComponentID: c.cfg.ID, Err: fmt.Errorf("%s: %w", SchemaName(c.cfg.Type, SchemaConfig), err)}
		}
	}
	return values, model, nil
}

// resolveConfigField returns false when an optional field without default is not configured.
func (c *Component) resolveConfigField(f ConfigField, static []entity.Entity) (datapoint.Datapoint, bool, error) {
	entry, configured := c.cfg.Config[f.Name]
	var d datapoint.Datapoint
	switch {
	case !configured && f.Default.IsAbsent():
		if f.Required {
			return d, false, validationErr(c.cfg.ID, f.Name, "config entry is missing in %s", SchemaName(c.cfg.Type, SchemaConfig))
		}
		return d, false, nil
	case !configured:
		d = datapoint.New(f.Default, f.Unit)
	case entry.Allocation != nil:
		if static == nil {
			return d, false, validationErr(c.cfg.ID, f.Name, "config entry needs static data but none is available")
		}
		resolved, err := Resolve(static, *entry.Allocation)
		if err != nil {
			return d, false, &ValidationError{ComponentID: c.cfg.ID, Field: f.Name, Err: err}
		}
		if resolved.Value.IsAbsent() && entry.Allocation.HasDefault() {
			resolved.Value = entry.Allocation.Default
		}
		if resolved.Unit == units.None {
			resolved.Unit = entry.Allocation.Unit
		}
		d = resolved
	case entry.Literal != nil:
		d = *entry.Literal
	default:
		return d, false, validationErr(c.cfg.ID, f.Name, "config entry is empty")
	}

	if f.Unit != units.None && d.Unit != units.None && d.Unit != f.Unit {
		converted, err := d.ConvertTo(f.Unit)
		if err != nil {
			return d, false, &ValidationError{ComponentID: c.cfg.ID, Field: f.Name, Err: fmt.Errorf("invalid unit conversion: %w", err)}
		}
		d = converted
	}

	if err := checkConfigValue(f, d); err != nil {
		return d, false, &ValidationError{ComponentID: c.cfg.ID, Field: f.Name, Err: err}
	}
	return d, true, nil
}

func checkConfigValue(f ConfigField, d datapoint.Datapoint) error {
	if d.Value.IsAbsent() && f.Required {
		return fmt.Errorf("required config entry has no value")
	}
	if f.Numeric && !d.Value.IsNumeric() {
		return fmt.Errorf("expected numeric value, got %s", d.Value.Kind())
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, d.Value.Kind()) {
		return fmt.Errorf("value of kind %s is not accepted", d.Value.Kind())
	}
	if f.Validate != nil {
		return f.Validate(d)
	}
	return nil
}

func (c *Component) prepareBehavior(values Values, model any) (Behavior, error) {
	b := c.descriptor.New()
	p := Preparation{
		ComponentID: c.cfg.ID,
		Config:      values.Clone(),
		Model:       model,
		Inputs:      sortedKeys(c.io.Inputs),
		Outputs:     sortedKeys(c.io.Outputs),
	}
	if err := b.Prepare(p); err != nil {
		return nil, &ValidationError{ComponentID: c.cfg.ID, Err: err}
	}
	return b, nil
}

// ResolveInputs resolves all wired inputs against the live input and static entities.
// Units of inputs are only labelled from the allocation, never converted.
func (c *Component) ResolveInputs(snapshot entity.Snapshot) (Values, error) {
	entities := snapshot.InputsAndStatic()
	values := make(Values, len(c.io.Inputs))
	for _, f := range c.descriptor.Input.Fields {
		a, wired := c.io.Inputs[f.Name]
		if !wired {
			continue
		}
		d, err := Resolve(entities, a)
		if err != nil {
			return nil, err
		}
		if d.Value.IsAbsent() && a.HasDefault() {
			d.Value = a.Default
		}
		if d.Unit == units.None && a.Unit != units.None {
			d.Unit = a.Unit
		}
		if d.Value.IsAbsent() && f.Required {
			return nil, fmt.Errorf("%s: required input %s has no value", SchemaName(c.cfg.Type, SchemaInput), f.Name)
		}
		if f.Numeric && !d.Value.IsAbsent() && !d.Value.IsNumeric() {
			return nil, fmt.Errorf("%s: input %s expected numeric value, got %s", SchemaName(c.cfg.Type, SchemaInput), f.Name, d.Value.Kind())
		}
		values[f.Name] = d
	}
	return values, nil
}

// Run computes all wired outputs. Either every wired output with a calculation is
// returned or none and a *RunError.
func (c *Component) Run(snapshot entity.Snapshot) (wbs []entity.WriteBack, err error) {
	c.state = StateRunning
	defer func() {
		if r := recover(); r != nil {
			wbs = nil
			err = &RunError{ComponentID: c.cfg.ID, Err: fmt.Errorf("panic: %v", r)}
		}
		c.state = StateReady
	}()

	inputs, err := c.ResolveInputs(snapshot)
	if err != nil {
		return nil, &RunError{ComponentID: c.cfg.ID, Err: err}
	}

	now := c.now().UTC()
	ctx := &Context{
		ComponentID: c.cfg.ID,
		Config:      c.config,
		Inputs:      inputs,
		Now:         now,
	}

	for _, f := range c.descriptor.Output.Fields {
		if f.Calculation == nil {
			c.log.WithField("field", f.Name).Warn("no calculation for output, skipping")
			continue
		}
		a, wired := c.io.Outputs[f.Name]
		if !wired {
			continue
		}
		v, u, err := f.Calculation(c.behavior, ctx)
		if err != nil {
			return nil, &RunError{ComponentID: c.cfg.ID, Field: f.Name, Err: err}
		}
		if u == units.None {
			u = f.Unit
		}
		c.log.WithFields(logrus.Fields{
			"field": f.Name,
			"value": v.String(),
			"unit":  u,
		}).Debug("calculated output")
		wbs = append(wbs, entity.WriteBack{
			EntityID:    a.Entity,
			AttributeID: a.Attribute,
			Value:       v,
			Unit:        u,
			Timestamp:   now,
		})
	}
	return wbs, nil
}

// Calibrate re-resolves the config data from a fresh static snapshot and prepares a
// new behavior. On failure the previous configuration stays in effect. A nil
// snapshot means there is nothing to reload.
func (c *Component) Calibrate(static []entity.Entity) error {
	if static == nil {
		return nil
	}
	c.state = StateCalibrating
	defer func() {
		c.state = StateReady
	}()

	values, model, err := c.resolveConfig(static)
	if err != nil {
		return err
	}
	c.state = StateConfigResolved
	behavior, err := c.prepareBehavior(values, model)
	if err != nil {
		return err
	}
	c.config = values
	c.behavior = behavior
	return nil
}

func (c *Component) warnUnknown(section string, configured any, known []string) {
	var names []string
	switch m := configured.(type) {
	case map[string]datapoint.Allocation:
		names = sortedKeys(m)
	case map[string]datapoint.ConfigEntry:
		names = sortedKeys(m)
	}
	for _, n := range names {
		if !slices.Contains(known, n) {
			c.log.WithFields(logrus.Fields{
				"section": section,
				"field":   n,
			}).Warn("unknown field in component configuration is ignored")
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

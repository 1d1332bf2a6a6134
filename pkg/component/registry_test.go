package component

import (
	"testing"
	"time"

	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noop struct{}

func (noop) Prepare(Preparation) error { return nil }

func TestRegister(t *testing.T) {
	newNoop := func() Behavior { return noop{} }
	var tests = []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{name: "valid", d: Descriptor{Type: "valve", New: newNoop}, ok: true},
		{name: "namespaced", d: Descriptor{Type: "vendor.heat_pump", New: newNoop}, ok: true},
		{name: "empty type", d: Descriptor{New: newNoop}},
		{name: "camel case type", d: Descriptor{Type: "HeatPump", New: newNoop}},
		{name: "no behavior", d: Descriptor{Type: "valve"}},
		{
			name: "duplicate field",
			d: Descriptor{Type: "valve", New: newNoop, Input: InputSchema{Fields: []InputField{
				{Name: "position"}, {Name: "position"},
			}}},
		},
		{
			name: "field not snake case",
			d:    Descriptor{Type: "valve", New: newNoop, Config: ConfigSchema{Fields: []ConfigField{{Name: "maxPosition"}}}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.d)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sampleDescriptor()))
	assert.Error(t, r.Register(sampleDescriptor()))
	assert.Equal(t, []string{"sample_component"}, r.Types())
}

func TestResolve(t *testing.T) {
	r := sampleRegistry(t)

	f, err := r.ResolveBehavior("sample_component")
	require.NoError(t, err)
	_, ok := f().(*sample)
	assert.True(t, ok)

	_, err = r.ResolveBehavior("missing")
	assert.ErrorIs(t, err, ErrLookup)

	s, err := r.ResolveSchema("sample_component", SchemaInput)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.FieldNames())

	s, err = r.ResolveSchema("sample_component", SchemaStaticData)
	require.NoError(t, err)
	assert.Equal(t, []string{"energy"}, s.FieldNames())

	_, err = r.ResolveSchema("missing", SchemaConfig)
	assert.ErrorIs(t, err, ErrLookup)

	_, err = r.ResolveSchema("sample_component", SchemaKind(42))
	assert.ErrorIs(t, err, ErrLookup)
}

func TestResolveSchemaWithoutStaticData(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Type: "valve", New: func() Behavior { return noop{} }}))
	s, err := r.ResolveSchema("valve", SchemaStaticData)
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "TwoPointControllerConfigData", SchemaName("two_point_controller", SchemaConfig))
	assert.Equal(t, "ThermalStorageInputData", SchemaName("thermal_storage", SchemaInput))
	assert.Equal(t, "HeatPumpOutputData", SchemaName("vendor.heat_pump", SchemaOutput))
	assert.Equal(t, "ValveStaticData", SchemaName("valve", SchemaStaticData))

	ns, name := ParseType("acme.hvac.heat_pump")
	assert.Equal(t, "acme.hvac", ns)
	assert.Equal(t, "heat_pump", name)
}

func TestResolveAllocation(t *testing.T) {
	ts := mustTime(t, "2024-03-01T10:00:00Z")
	entities := []entity.Entity{
		{ID: "tank", Attributes: []entity.Attribute{{ID: "t1", Data: datapoint.Scalar(1), Unit: "CEL", Timestamp: &ts}}},
		{ID: "meter", Attributes: []entity.Attribute{{ID: "energy", Data: datapoint.Text("n/a")}}},
	}

	d, err := Resolve(entities, datapoint.Allocation{Entity: "tank", Attribute: "t1"})
	require.NoError(t, err)
	assert.True(t, datapoint.Scalar(1).Equal(d.Value))
	assert.Equal(t, "CEL", d.Unit.String())
	assert.Equal(t, &ts, d.Time)

	var tests = []datapoint.Allocation{
		{Entity: "tank", Attribute: "t2"},
		{Entity: "boiler", Attribute: "t1"},
	}
	for _, a := range tests {
		_, err := Resolve(entities, a)
		assert.ErrorIs(t, err, ErrLookup)
		assert.Contains(t, err.Error(), a.Entity)
		assert.Contains(t, err.Error(), a.Attribute)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

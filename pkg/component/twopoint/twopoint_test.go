package twopoint

import (
	"testing"

	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T) *component.Registry {
	r := component.NewRegistry()
	require.NoError(t, r.Register(Descriptor()))
	return r
}

func config() component.Config {
	return component.Config{
		ID:   "heater",
		Type: Type,
		Inputs: map[string]datapoint.Allocation{
			InputCurrentValue:        {Entity: "tank", Attribute: "temperature"},
			InputLatestControlSignal: {Entity: "heater", Attribute: "signal"},
		},
		Outputs: map[string]datapoint.Allocation{
			OutputControlSignal: {Entity: "heater", Attribute: "signal"},
		},
		Config: map[string]datapoint.ConfigEntry{
			ConfigSetpoint:        datapoint.LiteralEntry(datapoint.Scalar(45), units.DegreeCelsius),
			ConfigHysteresis:      datapoint.LiteralEntry(datapoint.Scalar(5), units.DegreeCelsius),
			ConfigCommandEnabled:  datapoint.LiteralEntry(datapoint.Scalar(1), units.None),
			ConfigCommandDisabled: datapoint.LiteralEntry(datapoint.Scalar(0), units.None),
		},
	}
}

func snapshot(current, latest float64) entity.Snapshot {
	return entity.Snapshot{InputEntities: []entity.Entity{
		{ID: "tank", Attributes: []entity.Attribute{{ID: "temperature", Data: datapoint.Scalar(current), Unit: units.DegreeCelsius, DataAvailable: true}}},
		{ID: "heater", Attributes: []entity.Attribute{{ID: "signal", Data: datapoint.Scalar(latest), DataAvailable: true}}},
	}}
}

func TestControlSignal(t *testing.T) {
	var tests = []struct {
		name     string
		current  float64
		latest   float64
		expected float64
	}{
		{name: "below band enables", current: 39, latest: 0, expected: 1},
		{name: "above setpoint disables", current: 46, latest: 1, expected: 0},
		{name: "in band holds enabled", current: 42, latest: 1, expected: 1},
		{name: "in band holds disabled", current: 42, latest: 0, expected: 0},
		{name: "at setpoint holds enabled", current: 45, latest: 1, expected: 1},
		{name: "at lower edge holds disabled", current: 40, latest: 0, expected: 0},
	}
	c, err := component.New(registry(t), config(), nil)
	require.NoError(t, err)

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			wbs, err := c.Run(snapshot(tt.current, tt.latest))
			require.NoError(t, err)
			require.Len(t, wbs, 1)
			assert.Equal(t, "heater", wbs[0].EntityID)
			assert.Equal(t, "signal", wbs[0].AttributeID)
			assert.True(t, datapoint.Scalar(tt.expected).Equal(wbs[0].Value), "got %s", wbs[0].Value)
		})
	}
}

func TestConfigFromStaticData(t *testing.T) {
	cfg := config()
	cfg.Config[ConfigSetpoint] = datapoint.AllocationEntry(datapoint.Allocation{Entity: "settings", Attribute: "setpoint"})
	static := []entity.Entity{{ID: "settings", Attributes: []entity.Attribute{
		{ID: "setpoint", Data: datapoint.Scalar(60), Unit: units.DegreeCelsius, DataAvailable: true},
	}}}

	c, err := component.New(registry(t), cfg, static)
	require.NoError(t, err)
	wbs, err := c.Run(snapshot(54, 0))
	require.NoError(t, err)
	assert.True(t, datapoint.Scalar(1).Equal(wbs[0].Value))
}

func TestUnitMismatch(t *testing.T) {
	cfg := config()
	cfg.Config[ConfigHysteresis] = datapoint.LiteralEntry(datapoint.Scalar(5), units.Percent)
	_, err := component.New(registry(t), cfg, nil)
	assert.ErrorIs(t, err, component.ErrValidation)

	c, err := component.New(registry(t), config(), nil)
	require.NoError(t, err)
	s := snapshot(30, 0)
	s.InputEntities[0].Attributes[0].Unit = units.Percent
	wbs, err := c.Run(s)
	assert.Error(t, err)
	assert.Empty(t, wbs)
}

func TestMissingSetpoint(t *testing.T) {
	cfg := config()
	delete(cfg.Config, ConfigSetpoint)
	_, err := component.New(registry(t), cfg, nil)
	var verr *component.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ConfigSetpoint, verr.Field)
}

func TestNegativeHysteresis(t *testing.T) {
	cfg := config()
	cfg.Config[ConfigHysteresis] = datapoint.LiteralEntry(datapoint.Scalar(-1), units.DegreeCelsius)
	_, err := component.New(registry(t), cfg, nil)
	assert.ErrorIs(t, err, component.ErrValidation)
}

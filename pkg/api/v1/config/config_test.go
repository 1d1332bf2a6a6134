package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceDoc = `{
  "interfaces": {"file": true, "mqtt": true},
  "inputs": [
    {"id": "tank", "interface": "mqtt", "id_interface": "tank01", "attributes": [
      {"id": "temperature", "id_interface": "t_top", "type": "value", "value": 20, "unit": "CEL"}
    ]},
    {"id": "heater_state", "interface": "file", "attributes": [{"id": "signal", "type": "value"}]}
  ],
  "outputs": [
    {"id": "heater", "interface": "file", "attributes": [{"id": "signal", "type": "value"}]}
  ],
  "staticdata": [
    {"id": "settings", "interface": "file", "attributes": [{"id": "setpoint", "type": "value"}]}
  ],
  "controller_components": [
    {
      "id": "heater_control",
      "type": "two_point_controller",
      "inputs": {
        "current_value": {"entity": "tank", "attribute": "temperature"},
        "latest_control_signal": {"entity": "heater_state", "attribute": "signal", "default": 0}
      },
      "outputs": {"control_signal": {"entity": "heater", "attribute": "signal"}},
      "config": {
        "setpoint": {"entity": "settings", "attribute": "setpoint"},
        "hysteresis": {"value": 5, "unit": "CEL"},
        "command_enabled": 1,
        "command_disabled": 0
      }
    }
  ],
  "controller_settings": {
    "time_settings": {
      "calculation": {"sampling_time": 1, "sampling_time_unit": "minute"},
      "calibration": {"sampling_time": 1, "sampling_time_unit": "day"}
    }
  }
}`

func TestParseServiceConfig(t *testing.T) {
	c, err := ParseServiceConfig(strings.NewReader(serviceDoc))
	require.NoError(t, err)

	assert.Len(t, c.ControllerComponents, 1)
	comp := c.ControllerComponents[0]
	assert.True(t, comp.IsActive())
	assert.True(t, comp.Config["setpoint"].IsAllocation())
	assert.False(t, comp.Config["hysteresis"].IsAllocation())
	assert.True(t, comp.Inputs["latest_control_signal"].HasDefault())

	tank, ok := c.Entity("tank")
	require.True(t, ok)
	assert.Equal(t, types.InterfaceMQTT, tank.Interface)
	assert.Equal(t, "tank01", tank.InterfaceID())
	attr, ok := tank.Attribute("temperature")
	require.True(t, ok)
	assert.Equal(t, "t_top", attr.InterfaceID())
	assert.Equal(t, 1.0, attr.ScaleFactor())

	heater, ok := c.Entity("heater")
	require.True(t, ok)
	assert.Equal(t, "heater", heater.InterfaceID())

	d, err := c.ControllerSettings.TimeSettings.Calculation.Interval()
	assert.NoError(t, err)
	assert.Equal(t, time.Minute, d)
	d, err = c.ControllerSettings.TimeSettings.Calibration.Interval()
	assert.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)
}

func TestServiceConfigValidation(t *testing.T) {
	var tests = []struct {
		name    string
		replace [2]string
		errMsg  string
	}{
		{
			name:    "interface not enabled",
			replace: [2]string{`"mqtt": true`, `"mqtt": false`},
			errMsg:  "not enabled",
		},
		{
			name:    "unknown interface",
			replace: [2]string{`"interface": "mqtt"`, `"interface": "zigbee"`},
			errMsg:  "unknown interface",
		},
		{
			name:    "undeclared input entity",
			replace: [2]string{`{"entity": "tank", "attribute": "temperature"}`, `{"entity": "boiler", "attribute": "temperature"}`},
			errMsg:  "entity boiler is not declared",
		},
		{
			name:    "undeclared attribute",
			replace: [2]string{`{"entity": "heater", "attribute": "signal"}`, `{"entity": "heater", "attribute": "power"}`},
			errMsg:  "has no attribute power",
		},
		{
			name:    "config allocation outside static data",
			replace: [2]string{`{"entity": "settings", "attribute": "setpoint"}`, `{"entity": "tank", "attribute": "temperature"}`},
			errMsg:  "config setpoint",
		},
		{
			name:    "duplicate entity",
			replace: [2]string{`{"id": "settings"`, `{"id": "tank"`},
			errMsg:  "declared twice",
		},
		{
			name:    "missing sampling time",
			replace: [2]string{`"calculation": {"sampling_time": 1,`, `"calculation": {"sampling_time": 0,`},
			errMsg:  "calculation",
		},
		{
			name:    "unknown unit",
			replace: [2]string{`"unit": "CEL"}`, `"unit": "celsius"}`},
			errMsg:  "unknown unit",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(serviceDoc, tt.replace[0], tt.replace[1], 1)
			require.NotEqual(t, serviceDoc, doc)
			_, err := ParseServiceConfig(strings.NewReader(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadServiceConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(serviceDoc), 0644))
	c, err := LoadServiceConfig(path)
	require.NoError(t, err)
	assert.Len(t, c.Inputs, 2)

	_, err = LoadServiceConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte(" secret\n"), 0600))
	c := &CliConfig{FiwareTokenFile: path}
	assert.NoError(t, c.LoadToken())
	assert.Equal(t, "secret", c.Token())
}

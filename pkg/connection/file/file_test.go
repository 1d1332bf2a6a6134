package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tankEntity() config.Entity {
	return config.Entity{
		ID:          "tank",
		Interface:   "file",
		IDInterface: "tank01",
		Attributes: []config.Attribute{
			{ID: "top", IDInterface: "t_top", Unit: units.DegreeCelsius},
			{ID: "bottom", IDInterface: "t_bottom", Value: datapoint.Scalar(10)},
		},
	}
}

func write(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadJSON(t *testing.T) {
	var tests = []struct {
		name string
		doc  string
	}{
		{
			name: "wrapped",
			doc:  `{"inputdata": [{"id": "tank01", "attributes": [{"id": "t_top", "value": 55.5, "time": "2024-01-01T10:00:00+01:00"}]}]}`,
		},
		{
			name: "bare list",
			doc:  `[{"id": "tank01", "attributes": [{"id": "t_top", "value": 55.5, "time": "2024-01-01 09:00:00Z"}]}]`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			c := New(write(t, dir, "inputs.json", tt.doc), filepath.Join(dir, "static.json"), dir)

			e, err := c.Read(context.Background(), tankEntity())
			require.NoError(t, err)
			assert.Equal(t, "tank", e.ID)

			top, ok := e.Attribute("top")
			require.True(t, ok)
			assert.True(t, top.DataAvailable)
			assert.True(t, datapoint.Scalar(55.5).Equal(top.Data))
			assert.Equal(t, units.DegreeCelsius, top.Unit)
			require.NotNil(t, top.Timestamp)
			assert.True(t, top.Timestamp.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))

			bottom, ok := e.Attribute("bottom")
			require.True(t, ok)
			assert.False(t, bottom.DataAvailable)
			assert.True(t, datapoint.Scalar(10).Equal(bottom.Data))
		})
	}
}

func TestReadStaticFallback(t *testing.T) {
	dir := t.TempDir()
	static := write(t, dir, "static.json", `{"staticdata": [{"id": "settings", "attributes": [{"id": "volume", "value": 2, "unit": "MTQ"}]}]}`)
	c := New(filepath.Join(dir, "missing.json"), static, dir)

	e, err := c.Read(context.Background(), config.Entity{ID: "settings", Attributes: []config.Attribute{{ID: "volume"}}})
	require.NoError(t, err)
	a, ok := e.Attribute("volume")
	require.True(t, ok)
	assert.Equal(t, units.CubicMetre, a.Unit)

	_, err = c.Read(context.Background(), config.Entity{ID: "other"})
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := write(t, dir, "inputs.csv", "Time;t_top;t_bottom\n2024-01-01T10:00:00Z;55,5;\n2024-01-01T10:01:00Z;56,5;30\n")
	c := New(csvPath, filepath.Join(dir, "static.json"), dir)

	e, err := c.Read(context.Background(), tankEntity())
	require.NoError(t, err)
	top, _ := e.Attribute("top")
	assert.True(t, datapoint.Scalar(55.5).Equal(top.Data))
	require.NotNil(t, top.Timestamp)
	assert.Equal(t, 10, top.Timestamp.Hour())

	bottom, _ := e.Attribute("bottom")
	assert.False(t, bottom.DataAvailable)
	assert.True(t, datapoint.Scalar(10).Equal(bottom.Data))
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "inputs.json"), filepath.Join(dir, "static.json"), filepath.Join(dir, "results"))
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	out := config.Entity{ID: "heater", Attributes: []config.Attribute{{ID: "signal", IDInterface: "cmd"}}}

	err := c.Write(context.Background(), out, []entity.WriteBack{
		{EntityID: "heater", AttributeID: "signal", Value: datapoint.Scalar(1), Timestamp: ts},
		{EntityID: "heater", AttributeID: "power", Value: datapoint.Scalar(2.5), Unit: units.Kilowatt, Timestamp: ts},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(c.ResultPath("heater"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "heater", "attributes": [
		{"id": "cmd", "value": 1, "unit": null, "time": "2024-01-01T10:00:00Z"},
		{"id": "power", "value": 2.5, "unit": "KWT", "time": "2024-01-01T10:00:00Z"}
	]}]`, string(b))

	var decoded []resultEntity
	assert.NoError(t, json.Unmarshal(b, &decoded))
}

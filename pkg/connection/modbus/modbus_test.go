package modbus

import (
	"context"
	"testing"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heatPump() config.Entity {
	return config.Entity{
		ID:        "heatpump",
		Interface: "modbus",
		Attributes: []config.Attribute{
			{ID: "outdoor", IDInterface: "input:13", Unit: units.DegreeCelsius, Scale: 0.1},
			{ID: "setpoint", IDInterface: "holding:40", Unit: units.DegreeCelsius},
			{ID: "energy", IDInterface: "holding32:100", Unit: units.KilowattHour},
			{ID: "compressor", IDInterface: "coil:3"},
			{ID: "alarm", IDInterface: "discrete:7"},
		},
	}
}

func TestParseRegister(t *testing.T) {
	var tests = []struct {
		given string
		want  Register
		err   bool
	}{
		{given: "input:13", want: Register{Kind: RegisterInput, Address: 13}},
		{given: "holding32:100", want: Register{Kind: RegisterHolding32, Address: 100}},
		{given: "holding", err: true},
		{given: "holding:70000", err: true},
		{given: "analog:1", err: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.given, func(t *testing.T) {
			r, err := ParseRegister(tt.given)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestRead(t *testing.T) {
	fake := newFakeModbus()
	fake.input[13] = []byte{0xff, 0xe4}
	fake.holding[40] = []byte{0x00, 0x2d}
	fake.holding[100] = []byte{0x00, 0x07, 0xda, 0xd5}
	fake.coils[3] = WriteCoilValueOn
	c := New(NewClient(fake, nil))

	e, err := c.Read(context.Background(), heatPump())
	require.NoError(t, err)

	expected := map[string]datapoint.Value{
		"outdoor":    datapoint.Scalar(-2.8000000000000003),
		"setpoint":   datapoint.Scalar(45),
		"energy":     datapoint.Scalar(514773),
		"compressor": datapoint.Bool(true),
		"alarm":      datapoint.Bool(false),
	}
	for id, want := range expected {
		a, ok := e.Attribute(id)
		require.True(t, ok, id)
		assert.True(t, a.DataAvailable, id)
		assert.True(t, want.Equal(a.Data), "%s: got %s", id, a.Data)
	}
}

func TestWrite(t *testing.T) {
	fake := newFakeModbus()
	c := New(NewClient(fake, nil))

	err := c.Write(context.Background(), heatPump(), []entity.WriteBack{
		{EntityID: "heatpump", AttributeID: "setpoint", Value: datapoint.Scalar(47.4)},
		{EntityID: "heatpump", AttributeID: "energy", Value: datapoint.Scalar(-29)},
		{EntityID: "heatpump", AttributeID: "compressor", Value: datapoint.Bool(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x2f}, fake.holding[40])
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xe3}, fake.holding[100])
	assert.Equal(t, WriteCoilValueOn, fake.coils[3])

	err = c.Write(context.Background(), heatPump(), []entity.WriteBack{
		{EntityID: "heatpump", AttributeID: "outdoor", Value: datapoint.Scalar(1)},
	})
	assert.ErrorContains(t, err, "read only")
}

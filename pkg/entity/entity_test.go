package entity

import (
	"encoding/json"
	"testing"

	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotJSON(t *testing.T) {
	in := `{
  "input_entities": [{"id": "tank", "attributes": [{"id": "t1", "data": 55.5, "unit": "CEL", "data_available": true}]}],
  "output_entities": [],
  "static_entities": [{"id": "const", "attributes": [{"id": "volume", "data": 2, "unit": "MTQ", "data_available": true}]}]
}`
	s := Snapshot{}
	err := json.Unmarshal([]byte(in), &s)
	assert.NoError(t, err)

	all := s.InputsAndStatic()
	assert.Len(t, all, 2)
	assert.Equal(t, "tank", all[0].ID)
	assert.Equal(t, "const", all[1].ID)

	a, ok := all[0].Attribute("t1")
	assert.True(t, ok)
	assert.Equal(t, units.DegreeCelsius, a.Unit)
	assert.True(t, datapoint.Scalar(55.5).Equal(a.Datapoint().Value))

	_, ok = all[0].Attribute("t2")
	assert.False(t, ok)
}

func TestGroupByEntity(t *testing.T) {
	g := GroupByEntity([]WriteBack{
		{EntityID: "a", AttributeID: "1"},
		{EntityID: "b", AttributeID: "1"},
		{EntityID: "a", AttributeID: "2"},
	})
	assert.Len(t, g, 2)
	assert.Equal(t, "1", g["a"][0].AttributeID)
	assert.Equal(t, "2", g["a"][1].AttributeID)
}

package entity

import (
	"time"

	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/units"
)

// Attribute is one value of an entity as read during a cycle.
type Attribute struct {
	ID            string          `json:"id"`
	Data          datapoint.Value `json:"data"`
	Unit          units.Unit      `json:"unit,omitempty"`
	DataAvailable bool            `json:"data_available"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
}

func (a Attribute) Datapoint() datapoint.Datapoint {
	return datapoint.Datapoint{Value: a.Data, Unit: a.Unit, Time: a.Timestamp}
}

type Entity struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
}

func (e Entity) Attribute(id string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

// Snapshot is everything read from the interfaces during one cycle.
type Snapshot struct {
	InputEntities  []Entity `json:"input_entities"`
	OutputEntities []Entity `json:"output_entities"`
	StaticEntities []Entity `json:"static_entities"`
}

// InputsAndStatic returns the live input entities followed by the static entities.
func (s Snapshot) InputsAndStatic() []Entity {
	out := make([]Entity, 0, len(s.InputEntities)+len(s.StaticEntities))
	out = append(out, s.InputEntities...)
	return append(out, s.StaticEntities...)
}

// WriteBack instructs an interface to set one attribute of one entity.
type WriteBack struct {
	EntityID    string          `json:"entity_id"`
	AttributeID string          `json:"attribute_id"`
	Value       datapoint.Value `json:"value"`
	Unit        units.Unit      `json:"unit,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// GroupByEntity groups write-backs by entity id keeping their order.
func GroupByEntity(wbs []WriteBack) map[string][]WriteBack {
	out := make(map[string][]WriteBack)
	for _, wb := range wbs {
		out[wb.EntityID] = append(out[wb.EntityID], wb)
	}
	return out
}

package component

import (
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
)

// Resolve returns the datapoint stored for the allocated attribute.
func Resolve(entities []entity.Entity, a datapoint.Allocation) (datapoint.Datapoint, error) {
	for _, e := range entities {
		if e.ID != a.Entity {
			continue
		}
		if attr, ok := e.Attribute(a.Attribute); ok {
			return attr.Datapoint(), nil
		}
	}
	return datapoint.Datapoint{}, &ResolutionError{Entity: a.Entity, Attribute: a.Attribute}
}

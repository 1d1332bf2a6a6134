package component

import (
	"github.com/nergy-se/controlkit/pkg/datapoint"
)

// Config is the configuration of one component as found in the service configuration document.
type Config struct {
	Active  *bool                            `json:"active,omitempty"`
	ID      string                           `json:"id"`
	Type    string                           `json:"type"`
	Inputs  map[string]datapoint.Allocation  `json:"inputs"`
	Outputs map[string]datapoint.Allocation  `json:"outputs"`
	Config  map[string]datapoint.ConfigEntry `json:"config,omitempty"`
}

// IsActive defaults to true when active is not set.
func (c Config) IsActive() bool {
	return c.Active == nil || *c.Active
}

func (c Config) Validate() error {
	if c.ID == "" {
		return validationErr(c.ID, "id", "component id is empty")
	}
	if c.Type == "" {
		return validationErr(c.ID, "type", "component type is empty")
	}
	return nil
}

// IOModel is the validated input and output wiring of a component.
type IOModel struct {
	Inputs  map[string]datapoint.Allocation
	Outputs map[string]datapoint.Allocation
}

// Package builtin registers the component types shipped with controlkit.
package builtin

import (
	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/component/thermalstorage"
	"github.com/nergy-se/controlkit/pkg/component/twopoint"
)

func Descriptors() []component.Descriptor {
	return []component.Descriptor{
		twopoint.Descriptor(),
		thermalstorage.Descriptor(),
	}
}

// Register adds the built-in component types to r.
func Register(r *component.Registry) error {
	for _, d := range Descriptors() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a new registry holding the built-in component types.
func Registry() *component.Registry {
	r := component.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

package builtin

import (
	"testing"

	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := Registry()
	assert.Equal(t, []string{"thermal_storage", "two_point_controller"}, r.Types())

	s, err := r.ResolveSchema("two_point_controller", component.SchemaStaticData)
	require.NoError(t, err)
	assert.Contains(t, s.FieldNames(), "setpoint")

	assert.Error(t, Register(r), "registering twice fails")
}

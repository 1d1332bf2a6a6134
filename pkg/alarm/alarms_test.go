package alarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveAlarms(t *testing.T) {
	a := &ActiveAlarms{}
	assert.False(t, a.Remove("tank"))

	assert.True(t, a.Add("tank", "input t1 missing"))
	assert.False(t, a.Add("tank", "input t2 missing"))
	assert.True(t, a.Add("boiler", "timeout"))

	list := a.List()
	assert.Len(t, list, 2)
	assert.Equal(t, "boiler", list[0].Key)
	assert.Equal(t, "input t2 missing", list[1].Message)
	assert.Equal(t, 2, list[1].Count)

	assert.True(t, a.Remove("tank"))
	assert.True(t, a.Add("tank", "again"))

	assert.True(t, a.Remove("tank"))
	assert.True(t, a.Remove("boiler"))
	assert.Empty(t, a.List())
}

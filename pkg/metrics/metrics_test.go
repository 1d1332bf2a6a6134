package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRun("tank", time.Millisecond, nil)
	m.ObserveRun("tank", time.Millisecond, nil)
	m.ObserveRun("tank", time.Millisecond, errors.New("boom"))
	m.ObserveCalibration("tank", nil)
	m.ObserveCycle(2*time.Second, true)
	m.SetOutputs("tank", map[string]float64{"storage__level": 55})


	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `controlkit_component_runs_total{component="tank",result="ok"} 2`)
	assert.Contains(t, string(body), `controlkit_component_runs_total{component="tank",result="error"} 1`)
	assert.Contains(t, string(body), `controlkit_component_calibrations_total{component="tank",result="ok"} 1`)
	assert.Contains(t, string(body), "controlkit_cycle_overruns_total 1")
	assert.Contains(t, string(body), `controlkit_component_output{component="tank",output="storage__level"} 55`)
}

package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	a := New(&config.CliConfig{})
	a.state.Update("heater_control", func(s *state.Status) {
		s.Type = "two_point_controller"
		s.State = "ready"
	})

	var tests = []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "health", path: "/health", status: http.StatusOK, body: `"status":"ok"`},
		{name: "components", path: "/components", status: http.StatusOK, body: `"id":"heater_control"`},
		{name: "component", path: "/components/heater_control", status: http.StatusOK, body: `"type":"two_point_controller"`},
		{name: "unknown component", path: "/components/nope", status: http.StatusNotFound, body: "component nope not found"},
		{name: "alarms", path: "/alarms", status: http.StatusOK, body: "[]"},
		{name: "metrics", path: "/metrics", status: http.StatusOK, body: "go_goroutines"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.router().ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestHealthDegraded(t *testing.T) {
	a := New(&config.CliConfig{})
	a.alarms.Add("heater_control", "input missing")

	w := httptest.NewRecorder()
	a.router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := map[string]any{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, 1.0, body["alarms"])
}

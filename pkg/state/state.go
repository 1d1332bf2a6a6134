// Package state caches the latest status of every component for the status endpoint.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/nergy-se/controlkit/pkg/datapoint"
)

type Status struct {
	ID         string                         `json:"id"`
	Type       string                         `json:"type"`
	State      string                         `json:"state"`
	LastRun    *time.Time                     `json:"last_run,omitempty"`
	LastError  string                         `json:"last_error,omitempty"`
	Outputs    map[string]datapoint.Datapoint `json:"outputs,omitempty"`
	Calibrated *time.Time                     `json:"calibrated,omitempty"`
}

// Map returns the numeric outputs. Booleans are reported as 0 or 1.
func (s Status) Map() map[string]float64 {
	m := make(map[string]float64)
	for name, dp := range s.Outputs {
		if f, ok := dp.Value.Float(); ok {
			m[name] = f
			continue
		}
		if b, ok := dp.Value.Bool(); ok {
			m[name] = boolToFloat(b)
		}
	}
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type Cache struct {
	statuses map[string]Status
	mutex    sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{statuses: make(map[string]Status)}
}

// Update applies fn to the status of id, creating it if needed.
func (c *Cache) Update(id string, fn func(*Status)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s, ok := c.statuses[id]
	if !ok {
		s = Status{ID: id}
	}
	fn(&s)
	c.statuses[id] = s
}

func (c *Cache) Get(id string) (Status, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	s, ok := c.statuses[id]
	return s, ok
}

func (c *Cache) List() []Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]Status, 0, len(c.statuses))
	for _, s := range c.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

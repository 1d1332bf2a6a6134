// Package alarm tracks which components currently fail so that repeated
// failures are only reported once.
package alarm

import (
	"sort"
	"sync"
	"time"
)

type Alarm struct {
	Key     string    `json:"key"`
	Message string    `json:"message"`
	Since   time.Time `json:"since"`
	Count   int       `json:"count"`
}

type ActiveAlarms struct {
	activeAlarms map[string]*Alarm
	sync.RWMutex
}

// Add raises an alarm for key and returns true if it was added. returns false if it already exists.
func (a *ActiveAlarms) Add(key, message string) bool {
	a.Lock()
	defer a.Unlock()
	if a.activeAlarms == nil {
		a.activeAlarms = make(map[string]*Alarm)
	}
	if existing, ok := a.activeAlarms[key]; ok {
		existing.Message = message
		existing.Count++
		return false
	}

	a.activeAlarms[key] = &Alarm{Key: key, Message: message, Since: time.Now(), Count: 1}
	return true
}

// Remove clears the alarm for key and returns true if it was active.
func (a *ActiveAlarms) Remove(key string) bool {
	a.Lock()
	defer a.Unlock()
	if _, ok := a.activeAlarms[key]; !ok {
		return false
	}
	delete(a.activeAlarms, key)
	return true
}

// List returns copies of the active alarms ordered by key.
func (a *ActiveAlarms) List() []Alarm {
	a.RLock()
	defer a.RUnlock()
	out := make([]Alarm, 0, len(a.activeAlarms))
	for _, al := range a.activeAlarms {
		out = append(out, *al)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

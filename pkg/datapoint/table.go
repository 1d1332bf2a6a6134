package datapoint

import (
	"fmt"
	"time"
)

// Table is a columnar time series. Every column has one value per timestamp.
type Table struct {
	Time    []time.Time `json:"time"`
	Columns []Column    `json:"columns"`
}

type Column struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Time)
}

func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Last returns the newest value of a column together with its timestamp.
func (t *Table) Last(name string) (float64, time.Time, error) {
	c, ok := t.Column(name)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("column %q not found", name)
	}
	n := t.Len()
	if n == 0 || len(c.Values) != n {
		return 0, time.Time{}, fmt.Errorf("column %q has %d values for %d rows", name, len(c.Values), n)
	}
	return c.Values[n-1], t.Time[n-1], nil
}

// Validate checks that all columns have the same length as the time index.
func (t *Table) Validate() error {
	for _, c := range t.Columns {
		if len(c.Values) != len(t.Time) {
			return fmt.Errorf("column %q has %d values for %d rows", c.Name, len(c.Values), len(t.Time))
		}
	}
	return nil
}

package units

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Unit is a physical unit identified by its UN/CEFACT common code.
type Unit string

// None means the datapoint carries no unit.
const None Unit = ""

const (
	// Time
	Second Unit = "SEC"
	Minute Unit = "MIN"
	Hour   Unit = "HUR"
	Day    Unit = "DAY"

	// Temperature
	DegreeCelsius Unit = "CEL"

	// Volume
	Liter      Unit = "LIT"
	CubicMetre Unit = "MTQ"

	// Volume flow
	CubicMetrePerHour   Unit = "MQH"
	CubicMetrePerSecond Unit = "MQS"
	LiterPerMinute      Unit = "L2"

	// Energy
	Joule        Unit = "JOU"
	Kilojoule    Unit = "KJO"
	WattHour     Unit = "WHR"
	KilowattHour Unit = "KWH"
	MegawattHour Unit = "MWH"

	// Power
	Watt     Unit = "WTT"
	Kilowatt Unit = "KWT"
	Megawatt Unit = "MAW"

	// Ratio
	Percent Unit = "P1"
)

type Dimension string

const (
	DimensionTime        Dimension = "time"
	DimensionTemperature Dimension = "temperature"
	DimensionVolume      Dimension = "volume"
	DimensionFlow        Dimension = "flow"
	DimensionEnergy      Dimension = "energy"
	DimensionPower       Dimension = "power"
	DimensionRatio       Dimension = "ratio"
)

var ErrNotConvertible = errors.New("units not convertible")

type definition struct {
	dimension Dimension
	// scale to the dimension's base unit
	scale float64
}

// base units: second, °C, m³, m³/s, J, W, percent.
var table = map[Unit]definition{
	Second: {DimensionTime, 1},
	Minute: {DimensionTime, 60},
	Hour:   {DimensionTime, 3600},
	Day:    {DimensionTime, 86400},

	DegreeCelsius: {DimensionTemperature, 1},

	Liter:      {DimensionVolume, 1e-3},
	CubicMetre: {DimensionVolume, 1},

	CubicMetrePerSecond: {DimensionFlow, 1},
	CubicMetrePerHour:   {DimensionFlow, 1.0 / 3600},
	LiterPerMinute:      {DimensionFlow, 1e-3 / 60},

	Joule:        {DimensionEnergy, 1},
	Kilojoule:    {DimensionEnergy, 1e3},
	WattHour:     {DimensionEnergy, 3600},
	KilowattHour: {DimensionEnergy, 3.6e6},
	MegawattHour: {DimensionEnergy, 3.6e9},

	Watt:     {DimensionPower, 1},
	Kilowatt: {DimensionPower, 1e3},
	Megawatt: {DimensionPower, 1e6},

	Percent: {DimensionRatio, 1},
}

func (u Unit) Valid() bool {
	_, ok := table[u]
	return ok
}

// Dimension returns the physical dimension of u or "" for unknown units.
func (u Unit) Dimension() Dimension {
	return table[u].dimension
}

func (u Unit) String() string {
	return string(u)
}

func (u *Unit) UnmarshalText(b []byte) error {
	v := Unit(b)
	if v != None && !v.Valid() {
		return fmt.Errorf("unknown unit %q", string(b))
	}
	*u = v
	return nil
}

// All returns all known units sorted by code.
func All() []Unit {
	out := make([]Unit, 0, len(table))
	for u := range table {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Factor returns the multiplicative factor converting a value in from to a value in to.
// The second return value is false when the pair is not convertible.
func Factor(from, to Unit) (float64, bool) {
	if from == to && from.Valid() {
		return 1, true
	}
	f, ok := table[from]
	if !ok {
		return 0, false
	}
	t, ok := table[to]
	if !ok || f.dimension != t.dimension {
		return 0, false
	}
	return f.scale / t.scale, true
}

// Convert converts v from one unit to another.
func Convert(v float64, from, to Unit) (float64, error) {
	factor, ok := Factor(from, to)
	if !ok {
		return 0, fmt.Errorf("%w: %q to %q", ErrNotConvertible, from, to)
	}
	return v * factor, nil
}

// TimeUnit is used for sampling intervals and query windows.
type TimeUnit string

const (
	TimeSecond TimeUnit = "second"
	TimeMinute TimeUnit = "minute"
	TimeHour   TimeUnit = "hour"
	TimeDay    TimeUnit = "day"
	TimeMonth  TimeUnit = "month"
)

var timeUnitSeconds = map[TimeUnit]float64{
	TimeSecond: 1,
	TimeMinute: 60,
	TimeHour:   3600,
	TimeDay:    86400,
	TimeMonth:  30 * 86400,
}

// Seconds returns the number of seconds of one time unit. A month counts 30 days.
func (t TimeUnit) Seconds() (float64, bool) {
	s, ok := timeUnitSeconds[t]
	return s, ok
}

// Duration returns n time units as a time.Duration.
func (t TimeUnit) Duration(n float64) (time.Duration, error) {
	s, ok := t.Seconds()
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", string(t))
	}
	return time.Duration(n * s * float64(time.Second)), nil
}

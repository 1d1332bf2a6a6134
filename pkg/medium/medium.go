package medium

import "fmt"

type Medium string

const Water Medium = "water"

// Parameters are the specific heat capacity in kJ/(kg K) and the density in kg/m³.
type Parameters struct {
	Cp  float64
	Rho float64
}

var constants = map[Medium]Parameters{
	Water: {Cp: 4.19, Rho: 997},
}

func (m Medium) Valid() bool {
	_, ok := constants[m]
	return ok
}

// Get returns the constant parameters of m.
func Get(m Medium) (Parameters, error) {
	p, ok := constants[m]
	if !ok {
		return Parameters{}, fmt.Errorf("unknown medium %q", string(m))
	}
	return p, nil
}

// At returns the parameters of m at temperature t in °C using the cubic
// approximation by Glück. Only liquid water between 0.1 and 99 °C is supported.
func At(m Medium, t float64) (Parameters, error) {
	if m != Water {
		return Parameters{}, fmt.Errorf("no temperature dependent parameters for medium %q", string(m))
	}
	if t <= 0.1 {
		return Parameters{}, fmt.Errorf("temperature %.2f °C is too low for liquid water", t)
	}
	if t > 99 {
		return Parameters{}, fmt.Errorf("temperature %.2f °C is too high for liquid water", t)
	}
	return Parameters{
		Rho: 1002.045 - 0.1029905*t - 3.698162e-3*t*t + 3.991053e-6*t*t*t,
		Cp:  4.177375 - 2.144614e-6*t - 3.165823e-7*t*t + 4.134309e-8*t*t*t,
	}, nil
}

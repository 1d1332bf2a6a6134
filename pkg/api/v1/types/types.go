package types

// Interface is the external interface an entity is read from or written to.
type Interface string

var (
	InterfaceFile   = Interface("file")
	InterfaceMQTT   = Interface("mqtt")
	InterfaceFiware = Interface("fiware")
	InterfaceModbus = Interface("modbus")
	InterfaceMbus   = Interface("mbus")
)

func (i Interface) Valid() bool {
	switch i {
	case InterfaceFile, InterfaceMQTT, InterfaceFiware, InterfaceModbus, InterfaceMbus:
		return true
	}
	return false
}

type AttributeType string

var (
	AttributeTypeValue      = AttributeType("value")
	AttributeTypeTimeseries = AttributeType("timeseries")
)

// Package modbus maps entity attributes to Modbus TCP registers and coils.
package modbus

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/sirupsen/logrus"
)

type RegisterKind string

const (
	RegisterInput     RegisterKind = "input"
	RegisterHolding   RegisterKind = "holding"
	RegisterHolding32 RegisterKind = "holding32"
	RegisterCoil      RegisterKind = "coil"
	RegisterDiscrete  RegisterKind = "discrete"
)

// Register is an attribute address of the form <kind>:<address>, for example holding:40.
type Register struct {
	Kind    RegisterKind
	Address uint16
}

func ParseRegister(s string) (Register, error) {
	kind, addr, ok := strings.Cut(s, ":")
	if !ok {
		return Register{}, fmt.Errorf("invalid register %q, expected <kind>:<address>", s)
	}
	a, err := strconv.ParseUint(addr, 10, 16)
	if err != nil {
		return Register{}, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	r := Register{Kind: RegisterKind(kind), Address: uint16(a)}
	switch r.Kind {
	case RegisterInput, RegisterHolding, RegisterHolding32, RegisterCoil, RegisterDiscrete:
		return r, nil
	}
	return Register{}, fmt.Errorf("unknown register kind %q", kind)
}

func (r Register) Writable() bool {
	return r.Kind == RegisterHolding || r.Kind == RegisterHolding32 || r.Kind == RegisterCoil
}

type Connection struct {
	client Client
	mutex  sync.Mutex
}

func New(c Client) *Connection {
	return &Connection{client: c}
}

// Dial creates a connection to a Modbus TCP slave. The handler reconnects on
// the next request after it has been closed.
func Dial(address string, slaveID byte, timeout time.Duration) *Connection {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = timeout
	return New(NewClient(modbus.NewClient(handler), handler.Close))
}

func (c *Connection) Name() types.Interface {
	return types.InterfaceModbus
}

func (c *Connection) Read(ctx context.Context, e config.Entity) (entity.Entity, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	out := entity.Entity{ID: e.ID}
	for _, a := range e.Attributes {
		r, err := ParseRegister(a.InterfaceID())
		if err != nil {
			return entity.Entity{}, fmt.Errorf("attribute %s: %w", a.ID, err)
		}
		v, err := c.read(r, a.ScaleFactor())
		if err != nil {
			return entity.Entity{}, fmt.Errorf("attribute %s: %w", a.ID, err)
		}
		now := time.Now()
		out.Attributes = append(out.Attributes, entity.Attribute{
			ID:            a.ID,
			Data:          v,
			Unit:          a.Unit,
			DataAvailable: true,
			Timestamp:     &now,
		})
	}
	return out, nil
}

func (c *Connection) read(r Register, scale float64) (datapoint.Value, error) {
	var (
		i   int
		b   bool
		err error
	)
	switch r.Kind {
	case RegisterInput:
		i, err = c.client.ReadInputRegister(r.Address)
	case RegisterHolding:
		i, err = c.client.ReadHoldingRegister16(r.Address)
	case RegisterHolding32:
		i, err = c.client.ReadHoldingRegister32(r.Address)
	case RegisterCoil:
		b, err = c.client.ReadCoil(r.Address)
		return datapoint.Bool(b), err
	case RegisterDiscrete:
		b, err = c.client.ReadDiscreteInput(r.Address)
		return datapoint.Bool(b), err
	}
	if err != nil {
		return datapoint.Absent(), err
	}
	return datapoint.Scalar(float64(i) * scale), nil
}

func (c *Connection) Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, wb := range wbs {
		a, ok := e.Attribute(wb.AttributeID)
		if !ok {
			return fmt.Errorf("attribute %s not configured on entity %s", wb.AttributeID, e.ID)
		}
		r, err := ParseRegister(a.InterfaceID())
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.ID, err)
		}
		if !r.Writable() {
			return fmt.Errorf("attribute %s: register %s is read only", a.ID, r.Kind)
		}
		err = c.write(r, a.ScaleFactor(), wb.Value)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", a.ID, err)
		}
		logrus.WithFields(logrus.Fields{
			"entity":    e.ID,
			"attribute": a.ID,
			"register":  a.InterfaceID(),
		}).Debugf("wrote %s", wb.Value)
	}
	return nil
}

func (c *Connection) write(r Register, scale float64, v datapoint.Value) error {
	if r.Kind == RegisterCoil {
		b, ok := v.Bool()
		if !ok {
			f, isNum := v.Float()
			if !isNum {
				return fmt.Errorf("cannot write %s value to coil", v.Kind())
			}
			b = f != 0
		}
		return c.client.WriteSingleCoil(r.Address, b)
	}

	f, ok := v.Float()
	if !ok {
		b, isBool := v.Bool()
		if !isBool {
			return fmt.Errorf("cannot write %s value to register", v.Kind())
		}
		if b {
			f = 1
		}
	}
	raw := math.Round(f / scale)
	if r.Kind == RegisterHolding32 {
		if raw < math.MinInt32 || raw > math.MaxInt32 {
			return fmt.Errorf("value %v out of range", raw)
		}
		return c.client.WriteRegister32(r.Address, int32(raw))
	}
	if raw < math.MinInt16 || raw > math.MaxUint16 {
		return fmt.Errorf("value %v out of range", raw)
	}
	return c.client.WriteSingleRegister(r.Address, uint16(int32(raw)))
}

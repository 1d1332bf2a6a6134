package modbus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// Client is the register level access used by the connection.
type Client interface {
	ReadInputRegister(address uint16) (int, error)
	ReadHoldingRegister16(address uint16) (int, error)
	ReadHoldingRegister32(address uint16) (int, error)
	ReadCoil(address uint16) (bool, error)
	ReadDiscreteInput(address uint16) (bool, error)
	WriteSingleRegister(address, value uint16) error
	WriteRegister32(address uint16, value int32) error
	WriteSingleCoil(address uint16, value bool) error
}

type client struct {
	client modbus.Client
	close  func() error
}

func NewClient(c modbus.Client, close func() error) *client {
	return &client{
		client: c,
		close:  close,
	}
}

func (c *client) closeIfNeeded(e error) {
	if e == nil || c.close == nil {
		return
	}

	if errors.Is(e, syscall.EPIPE) {
		logrus.Warn("reconnect due to broken pipe")
		err := c.close()
		if err != nil {
			logrus.Errorf("error closing client: %s", err)
		}
	}

	if errors.Is(e, os.ErrDeadlineExceeded) {
		logrus.Warn("reconnect due to i/o timeout")
		err := c.close()
		if err != nil {
			logrus.Errorf("error closing client: %s", err)
		}
	}
}

func (c *client) ReadInputRegister(address uint16) (int, error) {
	b, err := c.client.ReadInputRegisters(address, 1)
	if err != nil {
		c.closeIfNeeded(err)
		return 0, fmt.Errorf("error reading address %d: %w", address, err)
	}
	return Decode(b), nil
}

func (c *client) ReadHoldingRegister16(address uint16) (int, error) {
	return c.readHoldingRegister(address, 1)
}

func (c *client) ReadHoldingRegister32(address uint16) (int, error) {
	return c.readHoldingRegister(address, 2)
}

func (c *client) readHoldingRegister(address, count uint16) (int, error) {
	b, err := c.client.ReadHoldingRegisters(address, count)
	if err != nil {
		c.closeIfNeeded(err)
		return 0, fmt.Errorf("error reading address %d: %w", address, err)
	}
	return Decode(b), nil
}

func (c *client) ReadCoil(address uint16) (bool, error) {
	b, err := c.client.ReadCoils(address, 1)
	if err != nil {
		c.closeIfNeeded(err)
		return false, fmt.Errorf("error reading address %d: %w", address, err)
	}
	return len(b) > 0 && b[0]&1 == 1, nil
}

func (c *client) ReadDiscreteInput(address uint16) (bool, error) {
	b, err := c.client.ReadDiscreteInputs(address, 1)
	if err != nil {
		c.closeIfNeeded(err)
		return false, fmt.Errorf("error reading address %d: %w", address, err)
	}
	return len(b) > 0 && b[0]&1 == 1, nil
}

func (c *client) WriteSingleRegister(address, value uint16) error {
	_, err := c.client.WriteSingleRegister(address, value)
	if err != nil {
		c.closeIfNeeded(err)
		return fmt.Errorf("error writing address %d value %d error: %w", address, value, err)
	}
	return nil
}

func (c *client) WriteRegister32(address uint16, value int32) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(value))
	_, err := c.client.WriteMultipleRegisters(address, 2, b)
	if err != nil {
		c.closeIfNeeded(err)
		return fmt.Errorf("error writing address %d value %d error: %w", address, value, err)
	}
	return nil
}

func (c *client) WriteSingleCoil(address uint16, value bool) error {
	_, err := c.client.WriteSingleCoil(address, CoilValue(value))
	if err != nil {
		c.closeIfNeeded(err)
		return fmt.Errorf("error writing coil %d value %t error: %w", address, value, err)
	}
	return nil
}

// Decode High byte first high word first (big endian)
func Decode(data []byte) int {
	switch len(data) {
	case 1:
		var i int8
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 2:
		var i int16
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 4:
		var i int32
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 8:
		var i int64
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	}

	return 0
}

func CoilValue(b bool) uint16 {
	if b {
		return WriteCoilValueOn
	}
	return WriteCoilValueOff
}

const (
	WriteCoilValueOn  uint16 = 0xff00
	WriteCoilValueOff uint16 = 0
)

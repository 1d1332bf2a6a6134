package modbus

import (
	"errors"
	"os"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {

	var tests = []struct {
		name     string
		expected int
		given    []byte
	}{
		{
			name:     "8bit negative",
			expected: -28,
			given:    []byte{0xe4},
		},
		{
			name:     "16bit negative",
			expected: -28,
			given:    []byte{0xff, 0xe4},
		},
		{
			name:     "16bit postive",
			expected: 31,
			given:    []byte{0x00, 0x1f},
		},
		{
			name:     "large 32bit positive",
			expected: 514773,
			given:    []byte{0x00, 0x07, 0xda, 0xd5},
		},
		{
			name:     "32bit negative",
			expected: -29,
			given:    []byte{0xff, 0xff, 0xff, 0xe3},
		},
		{
			name:     "unsupported length",
			expected: 0,
			given:    []byte{0x00, 0x01, 0x02},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.given), "given(%#v)", tt.given)
		})
	}
}

// fakeModbus is an in-memory register map.
type fakeModbus struct {
	modbus.Client
	input    map[uint16][]byte
	holding  map[uint16][]byte
	coils    map[uint16]uint16
	discrete map[uint16]bool
	err      error
}

func newFakeModbus() *fakeModbus {
	return &fakeModbus{
		input:    map[uint16][]byte{},
		holding:  map[uint16][]byte{},
		coils:    map[uint16]uint16{},
		discrete: map[uint16]bool{},
	}
}

func (f *fakeModbus) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return f.input[address], f.err
}

func (f *fakeModbus) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return f.holding[address], f.err
}

func (f *fakeModbus) ReadCoils(address, quantity uint16) ([]byte, error) {
	if f.coils[address] == WriteCoilValueOn {
		return []byte{1}, f.err
	}
	return []byte{0}, f.err
}

func (f *fakeModbus) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	if f.discrete[address] {
		return []byte{1}, f.err
	}
	return []byte{0}, f.err
}

func (f *fakeModbus) WriteSingleRegister(address, value uint16) ([]byte, error) {
	f.holding[address] = []byte{byte(value >> 8), byte(value)}
	return nil, f.err
}

func (f *fakeModbus) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.holding[address] = value
	return nil, f.err
}

func (f *fakeModbus) WriteSingleCoil(address, value uint16) ([]byte, error) {
	f.coils[address] = value
	return nil, f.err
}

func TestCloseOnTimeout(t *testing.T) {
	var tests = []struct {
		name   string
		err    error
		closed bool
	}{
		{name: "timeout", err: os.ErrDeadlineExceeded, closed: true},
		{name: "other", err: errors.New("illegal data address"), closed: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeModbus()
			fake.err = tt.err
			closed := false
			c := NewClient(fake, func() error {
				closed = true
				return nil
			})
			_, err := c.ReadInputRegister(1)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.closed, closed)
		})
	}
}

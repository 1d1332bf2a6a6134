// Package mbus reads meter data records over a wired M-Bus serial line.
package mbus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonaz/gombus"
	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
)

// Reader returns the data record values of the meter at a primary address.
type Reader interface {
	ReadRecords(primaryAddr int) ([]float64, error)
}

type Connection struct {
	reader Reader
}

func New(r Reader) *Connection {
	return &Connection{reader: r}
}

func (c *Connection) Name() types.Interface {
	return types.InterfaceMbus
}

// Read requests one frame from the meter addressed by the entity id_interface
// and maps data records to attributes by their id_interface index.
func (c *Connection) Read(ctx context.Context, e config.Entity) (entity.Entity, error) {
	addr, err := strconv.Atoi(e.InterfaceID())
	if err != nil {
		return entity.Entity{}, fmt.Errorf("invalid primary address %q: %w", e.InterfaceID(), err)
	}

	records, err := c.reader.ReadRecords(addr)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("error reading meter %d: %w", addr, err)
	}

	now := time.Now()
	out := entity.Entity{ID: e.ID}
	for _, a := range e.Attributes {
		idx, err := strconv.Atoi(a.InterfaceID())
		if err != nil {
			return entity.Entity{}, fmt.Errorf("attribute %s: invalid record index %q", a.ID, a.InterfaceID())
		}
		attr := entity.Attribute{ID: a.ID, Unit: a.Unit, Data: a.Value, DataAvailable: !a.Value.IsAbsent()}
		if idx >= 0 && idx < len(records) {
			attr.Data = datapoint.Scalar(records[idx] * a.ScaleFactor())
			attr.DataAvailable = true
			attr.Timestamp = &now
		}
		out.Attributes = append(out.Attributes, attr)
	}
	return out, nil
}

func (c *Connection) Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error {
	return fmt.Errorf("mbus interface is read only, cannot write entity %s", e.ID)
}

func (c *Connection) Close() error {
	if closer, ok := c.reader.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Serial is a Reader on a serial device. The device is opened on first use
// and reopened after a failed read.
type Serial struct {
	device string
	conn   gombus.Conn
	mutex  sync.Mutex
}

func NewSerial(device string) *Serial {
	return &Serial{device: device}
}

func (m *Serial) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.close()
}

func (m *Serial) close() error {
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

func (m *Serial) ReadRecords(primaryAddr int) ([]float64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn == nil {
		c, err := gombus.DialSerial(m.device)
		if err != nil {
			return nil, err
		}
		m.conn = c
	}

	frame, err := m.read(primaryAddr)
	if err != nil {
		m.close()
		return nil, err
	}
	records := make([]float64, len(frame.DataRecords))
	for i, r := range frame.DataRecords {
		records[i] = r.Value
	}
	return records, nil
}

func (m *Serial) read(primaryAddr int) (*gombus.DecodedFrame, error) {
	_, err := m.conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, primaryAddr)
}

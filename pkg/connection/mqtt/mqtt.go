// Package mqtt runs an embedded MQTT broker and keeps the latest message of
// every configured attribute topic in a message store.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/sirupsen/logrus"
)

const subscriptionID = 1

type message struct {
	value     datapoint.Value
	unit      units.Unit
	time      *time.Time
	available bool
}

type Connection struct {
	server *mqttv2.Server
	prefix string
	store  map[string]message
	mutex  sync.RWMutex
}

// Start starts the broker. address may be empty to only use the inline client.
// The broker is closed when ctx is done.
func Start(ctx context.Context, wg *sync.WaitGroup, address, prefix string) (*Connection, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	if address != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
		err := server.AddListener(tcp)
		if err != nil {
			return nil, err
		}
	}

	err := server.Serve()
	if err != nil {
		return nil, err
	}

	c := &Connection{
		server: server,
		prefix: prefix,
		store:  make(map[string]message),
	}

	filter := Topic(prefix, "#")
	err = server.Subscribe(filter, subscriptionID, c.onMessage)
	if err != nil {
		server.Close()
		return nil, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		server.Close()
	}()
	return c, nil
}

func (c *Connection) Name() types.Interface {
	return types.InterfaceMQTT
}

// Topic joins parts with exactly one '/' between them.
func Topic(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, "/")
}

// Prepare seeds the message store with the configured default values of all entities.
func (c *Connection) Prepare(entities []config.Entity) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, e := range entities {
		for _, a := range e.Attributes {
			topic := Topic(c.prefix, e.InterfaceID(), a.InterfaceID())
			if _, exists := c.store[topic]; exists {
				logrus.WithField("topic", topic).Warn("topic already in message store, overwriting default")
			}
			c.store[topic] = message{value: a.Value, unit: a.Unit, available: !a.Value.IsAbsent()}
		}
	}
}

func (c *Connection) onMessage(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, known := c.store[pk.TopicName]; !known {
		return
	}
	m, err := parsePayload(pk.Payload)
	if err != nil {
		logrus.WithField("topic", pk.TopicName).Errorf("invalid payload: %s", err)
		c.store[pk.TopicName] = message{}
		return
	}
	logrus.WithFields(logrus.Fields{
		"topic":   pk.TopicName,
		"payload": string(pk.Payload),
	}).Debug("mqtt message stored")
	c.store[pk.TopicName] = m
}

func (c *Connection) Read(ctx context.Context, e config.Entity) (entity.Entity, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := entity.Entity{ID: e.ID}
	for _, a := range e.Attributes {
		attr := entity.Attribute{ID: a.ID, Unit: a.Unit}
		if m, ok := c.store[Topic(c.prefix, e.InterfaceID(), a.InterfaceID())]; ok {
			attr.Data = m.value
			attr.DataAvailable = m.available
			attr.Timestamp = m.time
			if m.unit != units.None {
				attr.Unit = m.unit
			}
		}
		out.Attributes = append(out.Attributes, attr)
	}
	return out, nil
}

type outgoing struct {
	Value datapoint.Value `json:"value"`
	Unit  units.Unit      `json:"unit,omitempty"`
	Time  time.Time       `json:"time"`
}

// Write publishes every write-back as a retained message.
func (c *Connection) Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error {
	for _, wb := range wbs {
		id := wb.AttributeID
		if a, ok := e.Attribute(wb.AttributeID); ok {
			id = a.InterfaceID()
		}
		b, err := json.Marshal(outgoing{Value: wb.Value, Unit: wb.Unit, Time: wb.Timestamp})
		if err != nil {
			return err
		}
		topic := Topic(c.prefix, e.InterfaceID(), id)
		err = c.server.Publish(topic, b, true, 0)
		if err != nil {
			return fmt.Errorf("error publishing to %s: %w", topic, err)
		}
		logrus.WithField("topic", topic).Debugf("published %s", string(b))
	}
	return nil
}

// parsePayload accepts {"value": ..., "unit": ..., "time": ...}, a plain JSON value
// or a string such as "23.5 °C" whose first token is the value. Strings that do
// not start with a number are kept as text.
func parsePayload(payload []byte) (message, error) {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		raw = string(payload)
	}

	m := message{}
	var value any
	switch v := raw.(type) {
	case map[string]any:
		var ok bool
		value, ok = v["value"]
		if !ok {
			return message{}, fmt.Errorf("value key not found")
		}
		if u, ok := v["unit"].(string); ok {
			unit := units.Unit(u)
			if !unit.Valid() {
				return message{}, fmt.Errorf("unknown unit %q", u)
			}
			m.unit = unit
		}
		if s, ok := v["time"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				m.time = &ts
			}
		}
	default:
		value = v
	}

	if s, ok := value.(string); ok {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return message{}, errors.New("empty payload")
		}
		if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
			value = f
		}
	}

	v, err := datapoint.FromAny(value)
	if err != nil {
		return message{}, err
	}
	m.value = v
	m.available = !v.IsAbsent()
	return m, nil
}

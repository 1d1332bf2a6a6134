// Package fiware reads and writes entity attributes on an NGSI-v2 context broker.
package fiware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/sirupsen/logrus"
)

type Options struct {
	URL         string
	Service     string
	ServicePath string
	Timeout     time.Duration
	// Token returns the current bearer token. It may be nil.
	Token func() string
}

type Connection struct {
	opts       Options
	httpClient *http.Client
}

func New(opts Options) *Connection {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Connection{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

func (c *Connection) Name() types.Interface {
	return types.InterfaceFiware
}

type metadata struct {
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

type attribute struct {
	Type     string              `json:"type,omitempty"`
	Value    datapoint.Value     `json:"value"`
	Metadata map[string]metadata `json:"metadata,omitempty"`
}

func (a attribute) unit() units.Unit {
	if m, ok := a.Metadata["unitCode"]; ok {
		if s, ok := m.Value.(string); ok && units.Unit(s).Valid() {
			return units.Unit(s)
		}
	}
	return units.None
}

func (a attribute) timestamp() *time.Time {
	m, ok := a.Metadata["TimeInstant"]
	if !ok {
		return nil
	}
	s, ok := m.Value.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func (c *Connection) Read(ctx context.Context, e config.Entity) (entity.Entity, error) {
	u := fmt.Sprintf("%s/v2/entities/%s", strings.TrimRight(c.opts.URL, "/"), url.PathEscape(e.InterfaceID()))
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return entity.Entity{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entity.Entity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entity.Entity{}, fmt.Errorf("error fetching entity %s StatusCode: %d", e.InterfaceID(), resp.StatusCode)
	}

	remote := make(map[string]json.RawMessage)
	err = json.NewDecoder(resp.Body).Decode(&remote)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("error decoding entity %s: %w", e.InterfaceID(), err)
	}

	out := entity.Entity{ID: e.ID}
	for _, a := range e.Attributes {
		attr := entity.Attribute{
			ID:            a.ID,
			Data:          a.Value,
			Unit:          a.Unit,
			DataAvailable: !a.Value.IsAbsent(),
		}
		raw, ok := remote[a.InterfaceID()]
		if !ok {
			logrus.WithFields(logrus.Fields{
				"entity":    e.ID,
				"attribute": a.ID,
			}).Debug("attribute missing on context broker")
			out.Attributes = append(out.Attributes, attr)
			continue
		}
		var ra attribute
		err = json.Unmarshal(raw, &ra)
		if err != nil {
			return entity.Entity{}, fmt.Errorf("error decoding attribute %s: %w", a.InterfaceID(), err)
		}
		if !ra.Value.IsAbsent() {
			attr.Data = ra.Value
			attr.DataAvailable = true
		}
		if u := ra.unit(); u != units.None {
			attr.Unit = u
		}
		attr.Timestamp = ra.timestamp()
		out.Attributes = append(out.Attributes, attr)
	}
	return out, nil
}

// Write updates (or appends) the attributes of the entity in one request.
func (c *Connection) Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error {
	body := make(map[string]attribute, len(wbs))
	for _, wb := range wbs {
		id := wb.AttributeID
		if a, ok := e.Attribute(wb.AttributeID); ok {
			id = a.InterfaceID()
		}
		attr := attribute{
			Type:  ngsiType(wb.Value),
			Value: wb.Value,
			Metadata: map[string]metadata{
				"TimeInstant": {Type: "DateTime", Value: wb.Timestamp.UTC().Format(time.RFC3339Nano)},
			},
		}
		if wb.Unit != units.None {
			attr.Metadata["unitCode"] = metadata{Type: "Text", Value: string(wb.Unit)}
		}
		body[id] = attr
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/v2/entities/%s/attrs", strings.TrimRight(c.opts.URL, "/"), url.PathEscape(e.InterfaceID()))
	req, err := c.newRequest(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("error updating entity %s StatusCode: %d body: %s", e.InterfaceID(), resp.StatusCode, string(msg))
	}
	return nil
}

func (c *Connection) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.Service != "" {
		req.Header.Set("Fiware-Service", c.opts.Service)
	}
	if c.opts.ServicePath != "" {
		req.Header.Set("Fiware-ServicePath", c.opts.ServicePath)
	}
	if c.opts.Token != nil {
		if t := c.opts.Token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}
	return req, nil
}

func ngsiType(v datapoint.Value) string {
	switch v.Kind() {
	case datapoint.KindScalar:
		return "Number"
	case datapoint.KindBoolean:
		return "Boolean"
	case datapoint.KindText:
		return "Text"
	}
	return "StructuredValue"
}

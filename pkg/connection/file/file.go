// Package file reads input and static data from local JSON or CSV files and
// writes results as JSON files.
package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/units"
	"github.com/sirupsen/logrus"
)

const (
	keyInputData  = "inputdata"
	keyStaticData = "staticdata"
	timeColumn    = "Time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

type Connection struct {
	inputPath  string
	staticPath string
	resultsDir string
	mutex      sync.Mutex
}

func New(inputPath, staticPath, resultsDir string) *Connection {
	return &Connection{
		inputPath:  inputPath,
		staticPath: staticPath,
		resultsDir: resultsDir,
	}
}

func (c *Connection) Name() types.Interface {
	return types.InterfaceFile
}

// document is the content of an input or static data file.
type document []documentEntity

type documentEntity struct {
	ID         string              `json:"id"`
	Attributes []documentAttribute `json:"attributes"`
}

type documentAttribute struct {
	ID    string          `json:"id"`
	Value datapoint.Value `json:"value"`
	Unit  units.Unit      `json:"unit,omitempty"`
	Time  *string         `json:"time"`
}

// Read looks the entity up in the input file and falls back to the static data file.
func (c *Connection) Read(ctx context.Context, e config.Entity) (entity.Entity, error) {
	if strings.EqualFold(filepath.Ext(c.inputPath), ".csv") {
		out, found, err := c.readCSV(e)
		if err != nil || found {
			return out, err
		}
	} else {
		doc, err := readDocument(c.inputPath, keyInputData)
		if err != nil && !os.IsNotExist(err) {
			return entity.Entity{}, err
		}
		if out, found := lookup(doc, e); found {
			return out, nil
		}
	}

	doc, err := readDocument(c.staticPath, keyStaticData)
	if err != nil && !os.IsNotExist(err) {
		return entity.Entity{}, err
	}
	if out, found := lookup(doc, e); found {
		return out, nil
	}
	return entity.Entity{}, fmt.Errorf("entity %s not found in %s or %s", e.InterfaceID(), c.inputPath, c.staticPath)
}

func readDocument(path, key string) (document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(b)
	doc := document{}
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("error decoding %s: %w", path, err)
		}
		return doc, nil
	}
	wrapped := map[string]document{}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	return wrapped[key], nil
}

func lookup(doc document, e config.Entity) (entity.Entity, bool) {
	for _, de := range doc {
		if de.ID != e.InterfaceID() {
			continue
		}
		out := entity.Entity{ID: e.ID}
		for _, a := range e.Attributes {
			attr := entity.Attribute{ID: a.ID, Data: a.Value, Unit: a.Unit}
			for _, da := range de.Attributes {
				if da.ID != a.InterfaceID() {
					continue
				}
				if !da.Value.IsAbsent() {
					attr.Data = da.Value
					attr.DataAvailable = true
				}
				if da.Unit != units.None {
					attr.Unit = da.Unit
				}
				if da.Time != nil {
					ts, err := parseTime(*da.Time)
					if err != nil {
						logrus.WithField("attribute", a.ID).Warn(err)
					} else {
						attr.Timestamp = &ts
					}
				}
			}
			out.Attributes = append(out.Attributes, attr)
		}
		return out, true
	}
	return entity.Entity{}, false
}

// readCSV uses the first row of a ';' separated file with decimal commas.
// Columns are matched against the interface ids of the attributes.
func (c *Connection) readCSV(e config.Entity) (entity.Entity, bool, error) {
	f, err := os.Open(c.inputPath)
	if err != nil {
		return entity.Entity{}, false, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ';'
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("error reading csv header of %s: %w", c.inputPath, err)
	}
	row, err := r.Read()
	if err != nil {
		return entity.Entity{}, false, fmt.Errorf("error reading first csv row of %s: %w", c.inputPath, err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(h)] = i
	}
	var ts *time.Time
	if i, ok := columns[timeColumn]; ok && i < len(row) {
		t, err := parseTime(row[i])
		if err != nil {
			return entity.Entity{}, false, err
		}
		ts = &t
	}

	out := entity.Entity{ID: e.ID}
	found := false
	for _, a := range e.Attributes {
		attr := entity.Attribute{ID: a.ID, Data: a.Value, Unit: a.Unit, Timestamp: ts}
		if i, ok := columns[a.InterfaceID()]; ok && i < len(row) {
			found = true
			if v := parseCell(row[i]); !v.IsAbsent() {
				attr.Data = v
				attr.DataAvailable = true
			}
		}
		out.Attributes = append(out.Attributes, attr)
	}
	return out, found, nil
}

func parseCell(s string) datapoint.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return datapoint.Absent()
	}
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		return datapoint.Scalar(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return datapoint.Bool(b)
	}
	return datapoint.Text(s)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("time %q is not in ISO format", s)
}

type resultAttribute struct {
	ID    string          `json:"id"`
	Value datapoint.Value `json:"value"`
	Unit  *units.Unit     `json:"unit"`
	Time  string          `json:"time"`
}

type resultEntity struct {
	ID         string            `json:"id"`
	Attributes []resultAttribute `json:"attributes"`
}

// Write replaces results/outputs_<entity>.json with the write-backs of this cycle.
func (c *Connection) Write(ctx context.Context, e config.Entity, wbs []entity.WriteBack) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := os.MkdirAll(c.resultsDir, 0755); err != nil {
		return err
	}

	result := resultEntity{ID: e.ID}
	for _, wb := range wbs {
		id := wb.AttributeID
		if a, ok := e.Attribute(wb.AttributeID); ok {
			id = a.InterfaceID()
		}
		ra := resultAttribute{
			ID:    id,
			Value: wb.Value,
			Time:  wb.Timestamp.Format(time.RFC3339),
		}
		if wb.Unit != units.None {
			u := wb.Unit
			ra.Unit = &u
		}
		result.Attributes = append(result.Attributes, ra)
	}

	b, err := json.MarshalIndent([]resultEntity{result}, "", "  ")
	if err != nil {
		return err
	}
	path := c.ResultPath(e.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ResultPath returns the file results for entity id are written to.
func (c *Connection) ResultPath(id string) string {
	return filepath.Join(c.resultsDir, fmt.Sprintf("outputs_%s.json", id))
}

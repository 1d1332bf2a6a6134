package datapoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

type Kind uint8

const (
	KindAbsent Kind = iota
	KindScalar
	KindText
	KindBoolean
	KindList
	KindStructured
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindScalar:
		return "scalar"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindList:
		return "list"
	case KindStructured:
		return "structured"
	case KindTable:
		return "table"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the polymorphic payload of a datapoint. The zero Value is absent.
type Value struct {
	kind       Kind
	number     float64
	text       string
	boolean    bool
	list       []any
	structured map[string]any
	table      *Table
}

func Absent() Value { return Value{} }

func Scalar(f float64) Value { return Value{kind: KindScalar, number: f} }

func Text(s string) Value { return Value{kind: KindText, text: s} }

func Bool(b bool) Value { return Value{kind: KindBoolean, boolean: b} }

func List(l []any) Value { return Value{kind: KindList, list: l} }

func Structured(m map[string]any) Value { return Value{kind: KindStructured, structured: m} }

func TableValue(t *Table) Value {
	if t == nil {
		return Absent()
	}
	return Value{kind: KindTable, table: t}
}

// FromAny builds a Value from a decoded JSON value or a plain Go value.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Absent(), nil
	case Value:
		return t, nil
	case float64:
		return Scalar(t), nil
	case float32:
		return Scalar(float64(t)), nil
	case int:
		return Scalar(float64(t)), nil
	case int8:
		return Scalar(float64(t)), nil
	case int16:
		return Scalar(float64(t)), nil
	case int32:
		return Scalar(float64(t)), nil
	case int64:
		return Scalar(float64(t)), nil
	case uint:
		return Scalar(float64(t)), nil
	case uint8:
		return Scalar(float64(t)), nil
	case uint16:
		return Scalar(float64(t)), nil
	case uint32:
		return Scalar(float64(t)), nil
	case uint64:
		return Scalar(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Absent(), fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Scalar(f), nil
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case []any:
		return List(t), nil
	case map[string]any:
		return Structured(t), nil
	case *Table:
		return TableValue(t), nil
	case Table:
		return TableValue(&t), nil
	}
	return Absent(), fmt.Errorf("unsupported value type %T", v)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsNumeric reports whether v holds a scalar number.
func (v Value) IsNumeric() bool { return v.kind == KindScalar }

func (v Value) Float() (float64, bool) {
	if v.kind != KindScalar {
		return 0, false
	}
	return v.number, true
}

func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindScalar:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case KindText:
		return v.text
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindList, KindStructured:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprintf("%v", v.Interface())
		}
		return string(b)
	case KindTable:
		return fmt.Sprintf("table(%d rows, %d columns)", v.table.Len(), len(v.table.Columns))
	}
	return v.kind.String()
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

func (v Value) List() ([]any, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) Structured() (map[string]any, bool) {
	if v.kind != KindStructured {
		return nil, false
	}
	return v.structured, true
}

func (v Value) Table() (*Table, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	return v.table, true
}

// Interface returns the plain Go representation used for JSON and mapstructure decoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindAbsent:
		return nil
	case KindScalar:
		return v.number
	case KindText:
		return v.text
	case KindBoolean:
		return v.boolean
	case KindList:
		return v.list
	case KindStructured:
		return v.structured
	case KindTable:
		return v.table
	}
	return nil
}

// Scale multiplies a numeric value. Non-numeric values cannot be scaled.
func (v Value) Scale(factor float64) (Value, error) {
	switch v.kind {
	case KindScalar:
		return Scalar(v.number * factor), nil
	case KindAbsent, KindText, KindBoolean, KindList, KindStructured, KindTable:
		return v, fmt.Errorf("cannot scale %s value", v.kind)
	}
	return v, fmt.Errorf("cannot scale %s value", v.kind)
}

// Equal compares two values. Structured and list values are compared by their JSON encoding.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindScalar:
		return v.number == o.number || (math.IsNaN(v.number) && math.IsNaN(o.number))
	case KindText:
		return v.text == o.text
	case KindBoolean:
		return v.boolean == o.boolean
	case KindList, KindStructured, KindTable:
		a, errA := json.Marshal(v)
		b, errB := json.Marshal(o)
		return errA == nil && errB == nil && bytes.Equal(a, b)
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindTable:
		return json.Marshal(v.table)
	case KindStructured:
		// sorted keys keep output stable
		keys := make([]string, 0, len(v.structured))
		for k := range v.structured {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := &bytes.Buffer{}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(v.structured[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		t := &Table{}
		if isTable(trimmed) {
			if err := json.Unmarshal(trimmed, t); err != nil {
				return err
			}
			*v = TableValue(t)
			return nil
		}
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func isTable(b []byte) bool {
	var shape struct {
		Time    json.RawMessage `json:"time"`
		Columns json.RawMessage `json:"columns"`
	}
	if err := json.Unmarshal(b, &shape); err != nil {
		return false
	}
	return shape.Time != nil && shape.Columns != nil && bytes.HasPrefix(bytes.TrimSpace(shape.Columns), []byte("["))
}

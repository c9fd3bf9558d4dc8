// Package records defines the raw record model shared by shard readers and
// the normalizer.
//
// A Record maps a source column name to a tagged Value. A key missing from
// the map means the column is absent from the shard; a present key holding a
// KindNull value means the column exists but the cell is null. Keeping both
// cases explicit lets the normalizer treat "missing" and "wrong type" as
// separate, testable branches instead of relying on implicit coercion.
package records

import (
	"fmt"
	"time"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindUint
	KindFloat
	KindBool
	KindBlob
	KindTime
	KindList
	KindStruct
	KindUnsupported
)

var kindNames = [...]string{
	KindNull:        "null",
	KindText:        "text",
	KindInt:         "int",
	KindUint:        "uint",
	KindFloat:       "float",
	KindBool:        "bool",
	KindBlob:        "blob",
	KindTime:        "time",
	KindList:        "list",
	KindStruct:      "struct",
	KindUnsupported: "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Field is one named member of a struct Value. Struct members keep the
// column order of the source schema.
type Field struct {
	Name  string
	Value Value
}

// Value is a tagged variant. Only the member matching Kind is meaningful.
type Value struct {
	Kind Kind

	Str   string
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Blob  []byte
	Time  time.Time

	Items  []Value // KindList
	Fields []Field // KindStruct

	// Type names the source type of a KindUnsupported value.
	Type string
}

func Null() Value                  { return Value{Kind: KindNull} }
func Text(s string) Value          { return Value{Kind: KindText, Str: s} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Uint(u uint64) Value          { return Value{Kind: KindUint, Uint: u} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Blob(b []byte) Value          { return Value{Kind: KindBlob, Blob: b} }
func Time(t time.Time) Value       { return Value{Kind: KindTime, Time: t} }
func List(items ...Value) Value    { return Value{Kind: KindList, Items: items} }
func Struct(fields ...Field) Value { return Value{Kind: KindStruct, Fields: fields} }
func Unsupported(typ string) Value { return Value{Kind: KindUnsupported, Type: typ} }

// IsNull reports whether v is a null cell.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Member returns the struct member called name. It reports false when v is
// not a struct or has no such member.
func (v Value) Member(name string) (Value, bool) {
	if v.Kind != KindStruct {
		return Value{}, false
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Record is one raw row read from a shard.
type Record map[string]Value

// Get returns the value stored under key and whether the key is present.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r[key]
	return v, ok
}

package schema

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/store"
)

// Kind is the collection type of a field
type Kind uint8

const (
	KindDefault      Kind = iota // scalar, absent means the default of its type
	KindDefaultValue             // scalar, absent means a given value or expression result
	KindOption                   // scalar, absent means unset
	KindList                     // wrapper.List
	KindDeque                    // wrapper.Deque
	KindMap                      // wrapper.Map
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "Default"
	case KindDefaultValue:
		return "DefaultValue"
	case KindOption:
		return "Option"
	case KindList:
		return "List"
	case KindDeque:
		return "Deque"
	case KindMap:
		return "Map"
	default:
		return "Unknown"
	}
}

// Field declares one field of a schema. Use the builder functions below.
type Field struct {
	Name   string
	Kind   Kind
	Value  any         // default of a DefaultValueField
	Expr   string      // default expression of a DefaultExprField
	Prefix keys.Prefix // assigned by NewLayout
}

func DefaultField(name string) Field { return Field{Name: name, Kind: KindDefault} }
func OptionField(name string) Field  { return Field{Name: name, Kind: KindOption} }
func ListField(name string) Field    { return Field{Name: name, Kind: KindList} }
func DequeField(name string) Field   { return Field{Name: name, Kind: KindDeque} }
func MapField(name string) Field     { return Field{Name: name, Kind: KindMap} }

// DefaultValueField declares a scalar whose absence means v
func DefaultValueField(name string, v any) Field {
	return Field{Name: name, Kind: KindDefaultValue, Value: v}
}

// DefaultExprField declares a scalar whose absence means the result of the
// expr-lang expression, evaluated once when the schema is opened.
func DefaultExprField(name, expression string) Field {
	return Field{Name: name, Kind: KindDefaultValue, Expr: expression}
}

// --------------------------------------------------------------------------
// Layout
// --------------------------------------------------------------------------

// Layout is the prefix assignment of a set of fields. Prefixes follow the
// lexicographic order of the field names, so the same set of names always
// yields the same layout no matter in which order they are declared.
// Adding or removing a field can shift the prefixes of other fields.
type Layout struct {
	fields []Field
	byName map[string]int
}

// NewLayout assigns prefixes 0..n-1 to the fields sorted by name. It fails
// for empty or duplicate names and for more than keys.MaxFields fields.
func NewLayout(fields ...Field) (*Layout, error) {
	if len(fields) > keys.MaxFields {
		return nil, store.NewError(store.RetCInvalidOperation,
			fmt.Sprintf("%d fields exceed the limit of %d", len(fields), keys.MaxFields))
	}

	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	l := &Layout{fields: sorted, byName: make(map[string]int, len(sorted))}
	for i := range sorted {
		f := &sorted[i]
		if f.Name == "" {
			return nil, store.NewError(store.RetCInvalidOperation, "empty field name")
		}
		if _, dup := l.byName[f.Name]; dup {
			return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("duplicate field %q", f.Name))
		}
		f.Prefix = keys.Prefix(i)
		l.byName[f.Name] = i
	}
	return l, nil
}

// Fields returns the fields in prefix order
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field returns the field called name
func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

// Prefix returns the prefix of the field called name
func (l *Layout) Prefix(name string) (keys.Prefix, bool) {
	f, ok := l.Field(name)
	return f.Prefix, ok
}

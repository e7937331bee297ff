package schema

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/ValentinKolb/dStruct/lib/codec"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/lockmgr"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/ValentinKolb/dStruct/lib/store"
	"github.com/ValentinKolb/dStruct/lib/wrapper"
	"github.com/expr-lang/expr"
)

var log = logging.GetLogger(logging.Schema)

// fieldState is the runtime state of one field shared by all its handles
type fieldState struct {
	Field
	length *atomic.Uint64 // List
	head   *atomic.Uint64 // Deque
	tail   *atomic.Uint64 // Deque
	def    any            // evaluated default of a DefaultValue field
}

// Schema binds a Layout to a backend. It owns the counters of its List and
// Deque fields, so every handle of a field must come from the same Schema.
// Opening two schemas on one backend and writing to the same list from both
// loses elements.
//
// Thread-safety: The accessors are safe for concurrent use. The returned
// handles are not, see package wrapper.
type Schema struct {
	layout *Layout
	store  *store.Store
	fields map[string]*fieldState
	locks  lockmgr.ILockManager
}

type config struct {
	codec codec.ValueCodec
	env   map[string]any
}

// OpenOption configures Open
type OpenOption func(*config)

// WithCodec sets the value codec (default: gob)
func WithCodec(c codec.ValueCodec) OpenOption {
	return func(cfg *config) {
		cfg.codec = c
	}
}

// WithExprEnv sets the variables available to default expressions
func WithExprEnv(env map[string]any) OpenOption {
	return func(cfg *config) {
		cfg.env = env
	}
}

// Open lays out fields, evaluates default expressions and recovers the
// counters of List and Deque fields from the content of bs. List and Deque
// fields need an ordered backend.
func Open(bs db.ByteStore, fields []Field, opts ...OpenOption) (*Schema, error) {
	cfg := &config{codec: codec.Gob(), env: map[string]any{}}
	for _, opt := range opts {
		opt(cfg)
	}

	layout, err := NewLayout(fields...)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		layout: layout,
		store:  store.NewStore(bs, store.WithCodec(cfg.codec)),
		fields: make(map[string]*fieldState, len(fields)),
	}
	s.locks = lockmgr.NewLockManager(s.store)

	for _, f := range layout.Fields() {
		state, err := s.open(f, cfg)
		if err != nil {
			return nil, err
		}
		s.fields[f.Name] = state
	}

	log.Infof("opened schema with %d fields on %s", len(fields), bs.GetInfo().DbType)
	return s, nil
}

func (s *Schema) open(f Field, cfg *config) (*fieldState, error) {
	state := &fieldState{Field: f}

	switch f.Kind {
	case KindList, KindDeque:
		if _, err := s.store.Ordered(); err != nil {
			return nil, store.WrapError(store.RetCUnsupportedOperation,
				fmt.Sprintf("%s field %q needs an ordered backend", f.Kind, f.Name), err)
		}
	}

	switch f.Kind {
	case KindList:
		n, err := wrapper.RecoverListLength(s.store, f.Prefix)
		if err != nil {
			return nil, err
		}
		state.length = new(atomic.Uint64)
		state.length.Store(n)
		log.Debugf("%s %q: recovered length %d", f.Kind, f.Name, n)

	case KindDeque:
		h, t, err := wrapper.RecoverDequeCursors(s.store, f.Prefix)
		if err != nil {
			return nil, err
		}
		state.head, state.tail = new(atomic.Uint64), new(atomic.Uint64)
		state.head.Store(h)
		state.tail.Store(t)
		log.Debugf("%s %q: recovered cursors %d..%d", f.Kind, f.Name, h, t)

	case KindDefaultValue:
		state.def = f.Value
		if f.Expr != "" {
			v, err := evalDefault(f.Expr, cfg.env)
			if err != nil {
				return nil, store.WrapError(store.RetCInvalidOperation,
					fmt.Sprintf("default expression of %q", f.Name), err)
			}
			state.def = v
		}

	case KindDefault, KindOption, KindMap:
		// stateless

	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("field %q has unknown kind %d", f.Name, f.Kind))
	}
	return state, nil
}

func evalDefault(expression string, env map[string]any) (any, error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}
	return expr.Run(program, env)
}

// Layout returns the prefix assignment
func (s *Schema) Layout() *Layout {
	return s.layout
}

// Store returns the typed store shared by all fields
func (s *Schema) Store() *store.Store {
	return s.store
}

// Synchronized runs fn while holding the lock of field. Use it for compound
// sequences on one field that must not interleave with other callers of
// Synchronized. The backend must support the Atomic capability.
func (s *Schema) Synchronized(field string, fn func() error) error {
	return s.SynchronizedContext(context.Background(), field, fn)
}

// SynchronizedContext is Synchronized with a context bounding the wait for
// the lock.
func (s *Schema) SynchronizedContext(ctx context.Context, field string, fn func() error) error {
	if _, ok := s.fields[field]; !ok {
		return unknownField(field)
	}
	return lockmgr.WithLock(ctx, s.locks, field, fn)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func unknownField(name string) error {
	return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown field %q", name))
}

func (s *Schema) field(name string, kind Kind) (*fieldState, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, unknownField(name)
	}
	if f.Kind != kind {
		return nil, store.NewError(store.RetCInvalidOperation,
			fmt.Sprintf("field %q is a %s, not a %s", name, f.Kind, kind))
	}
	return f, nil
}

// List returns a handle of the List field name
func List[T any](s *Schema, name string) (*wrapper.List[T], error) {
	f, err := s.field(name, KindList)
	if err != nil {
		return nil, err
	}
	return wrapper.NewList[T](s.store, f.Prefix, f.length), nil
}

// Deque returns a handle of the Deque field name
func Deque[T any](s *Schema, name string) (*wrapper.Deque[T], error) {
	f, err := s.field(name, KindDeque)
	if err != nil {
		return nil, err
	}
	return wrapper.NewDeque[T](s.store, f.Prefix, f.head, f.tail), nil
}

// Map returns a handle of the Map field name
func Map[K, V any](s *Schema, name string) (*wrapper.Map[K, V], error) {
	f, err := s.field(name, KindMap)
	if err != nil {
		return nil, err
	}
	return wrapper.NewMap[K, V](s.store, f.Prefix), nil
}

// Default returns a handle of the Default field name
func Default[T any](s *Schema, name string) (*wrapper.DefaultTrait[T], error) {
	f, err := s.field(name, KindDefault)
	if err != nil {
		return nil, err
	}
	return wrapper.NewDefaultTrait[T](s.store, f.Prefix), nil
}

// DefaultValue returns a handle of the DefaultValue field name. The default
// is converted to T if needed; expressions yield int and float64 for
// numbers, which convert to any numeric T that holds the value exactly.
func DefaultValue[T any](s *Schema, name string) (*wrapper.DefaultValue[T], error) {
	f, err := s.field(name, KindDefaultValue)
	if err != nil {
		return nil, err
	}
	def, err := convert[T](f.def)
	if err != nil {
		return nil, store.WrapError(store.RetCSerialization, fmt.Sprintf("default of %q", name), err)
	}
	return wrapper.NewDefaultValue(s.store, f.Prefix, def), nil
}

// Option returns a handle of the Option field name
func Option[T any](s *Schema, name string) (*wrapper.Option[T], error) {
	f, err := s.field(name, KindOption)
	if err != nil {
		return nil, err
	}
	return wrapper.NewOption[T](s.store, f.Prefix), nil
}

// convert turns v into a T. Numbers convert between numeric kinds as long as
// the value survives the round trip.
func convert[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	target := reflect.TypeOf((*T)(nil)).Elem()
	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) || rv.Kind() == target.Kind() && rv.Type().ConvertibleTo(target) {
		out := rv.Convert(target)
		if reflect.DeepEqual(out.Convert(rv.Type()).Interface(), v) {
			return out.Interface().(T), nil
		}
		return zero, fmt.Errorf("%v does not fit into %s", v, target)
	}
	return zero, fmt.Errorf("cannot use %T as %s", v, target)
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

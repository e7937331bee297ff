package store

import (
	"bytes"

	"github.com/ValentinKolb/dStruct/lib/codec"
	"github.com/ValentinKolb/dStruct/lib/db"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is the typed view of a db.ByteStore. Keys are encoded with the
// order preserving key codec, values with the configured ValueCodec.
//
// Thread-safety: A Store holds no mutable state of its own and is as safe
// for concurrent use as the ByteStore it wraps.
type Store struct {
	db    db.ByteStore
	codec codec.ValueCodec
	log   logger.ILogger
}

// Option configures a Store
type Option func(*Store)

// WithCodec sets the value codec (default: gob)
func WithCodec(c codec.ValueCodec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// NewStore creates a typed store on top of bs
func NewStore(bs db.ByteStore, opts ...Option) *Store {
	s := &Store{
		db:    bs,
		codec: codec.Gob(),
		log:   logging.GetLogger(logging.Store),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying byte store
func (s *Store) DB() db.ByteStore {
	return s.db
}

// Codec returns the value codec
func (s *Store) Codec() codec.ValueCodec {
	return s.codec
}

// --------------------------------------------------------------------------
// Capabilities
// --------------------------------------------------------------------------

// Atomic returns the atomic capability of the backend or ErrUnsupported
func (s *Store) Atomic() (db.Atomic, error) {
	if a, ok := db.AsAtomic(s.db); ok {
		return a, nil
	}
	return nil, unsupported(db.FeatureAtomic)
}

// Ordered returns the ordered capability of the backend or ErrUnsupported
func (s *Store) Ordered() (db.Ordered, error) {
	if o, ok := db.AsOrdered(s.db); ok {
		return o, nil
	}
	return nil, unsupported(db.FeatureOrdered)
}

// SupportsFeature reports whether the backend supports feature
func (s *Store) SupportsFeature(feature db.Feature) bool {
	return s.db.SupportsFeature(feature)
}

func unsupported(f db.Feature) error {
	return NewError(RetCUnsupportedOperation, f.String()+" not supported by the backend")
}

// --------------------------------------------------------------------------
// Encoding helpers
// --------------------------------------------------------------------------

// EncodeKey encodes key, reporting failures as serialization errors.
// Raw byte slices are not special: they are length prefixed like any other
// []byte key.
func (s *Store) EncodeKey(key any) ([]byte, error) {
	b, err := codec.EncodeKey(key)
	if err != nil {
		s.log.Debugf("encode key %T: %v", key, err)
		return nil, WrapError(RetCSerialization, "encode key", err)
	}
	return b, nil
}

// EncodeValue encodes v with the store's codec
func (s *Store) EncodeValue(v any) ([]byte, error) {
	b, err := s.codec.Encode(v)
	if err != nil {
		s.log.Debugf("encode value %T: %v", v, err)
		return nil, WrapError(RetCSerialization, "encode value", err)
	}
	return b, nil
}

// DecodeValue decodes b as a V with the store's codec
func DecodeValue[V any](s *Store, b []byte) (V, error) {
	var v V
	if err := s.codec.Decode(b, &v); err != nil {
		s.log.Debugf("decode value %T: %v", v, err)
		return v, WrapError(RetCSerialization, "decode value", err)
	}
	return v, nil
}

// DecodeKey decodes a full key as a K
func DecodeKey[K any](b []byte) (K, error) {
	k, err := codec.DecodeKeyAs[K](b)
	if err != nil {
		return k, WrapError(RetCSerialization, "decode key", err)
	}
	return k, nil
}

// SameEncoding reports whether a and b encode to the same bytes
func (s *Store) SameEncoding(a, b any) (bool, error) {
	ea, err := s.EncodeValue(a)
	if err != nil {
		return false, err
	}
	eb, err := s.EncodeValue(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}

func backend(op string, err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	return WrapError(RetCBackend, op, err)
}

// decodeOld decodes an optional previous value returned by the backend
func decodeOld[V any](s *Store, old []byte, loaded bool) (V, bool, error) {
	if !loaded {
		var zero V
		return zero, false, nil
	}
	v, err := DecodeValue[V](s, old)
	return v, true, err
}

// --------------------------------------------------------------------------
// Basic operations
// --------------------------------------------------------------------------

// Get returns the value stored under key
func Get[V any](s *Store, key any) (V, bool, error) {
	var zero V
	k, err := s.EncodeKey(key)
	if err != nil {
		return zero, false, err
	}
	raw, loaded, err := s.db.Get(k)
	if err != nil {
		return zero, false, backend("get", err)
	}
	return decodeOld[V](s, raw, loaded)
}

// Insert stores val under key and returns the previous value. Key and value
// are encoded before the backend is touched, so an encoding failure leaves
// the store unchanged.
func Insert[V any](s *Store, key any, val V) (V, bool, error) {
	var zero V
	k, err := s.EncodeKey(key)
	if err != nil {
		return zero, false, err
	}
	v, err := s.EncodeValue(val)
	if err != nil {
		return zero, false, err
	}
	old, loaded, err := s.db.Insert(k, v)
	if err != nil {
		return zero, false, backend("insert", err)
	}
	return decodeOld[V](s, old, loaded)
}

// Remove deletes key and returns the removed value
func Remove[V any](s *Store, key any) (V, bool, error) {
	var zero V
	k, err := s.EncodeKey(key)
	if err != nil {
		return zero, false, err
	}
	old, loaded, err := s.db.Remove(k)
	if err != nil {
		return zero, false, backend("remove", err)
	}
	return decodeOld[V](s, old, loaded)
}

// Contains reports whether a value is stored under key
func Contains(s *Store, key any) (bool, error) {
	k, err := s.EncodeKey(key)
	if err != nil {
		return false, err
	}
	_, loaded, err := s.db.Get(k)
	if err != nil {
		return false, backend("get", err)
	}
	return loaded, nil
}

// --------------------------------------------------------------------------
// Raw operations
// --------------------------------------------------------------------------

// RawGet reads already encoded key bytes
func RawGet(s *Store, key []byte) ([]byte, bool, error) {
	v, loaded, err := s.db.Get(key)
	if err != nil {
		return nil, false, backend("get", err)
	}
	return v, loaded, nil
}

// RawInsert writes already encoded key and value bytes
func RawInsert(s *Store, key, value []byte) ([]byte, bool, error) {
	old, loaded, err := s.db.Insert(key, value)
	if err != nil {
		return nil, false, backend("insert", err)
	}
	return old, loaded, nil
}

// RawRemove deletes already encoded key bytes
func RawRemove(s *Store, key []byte) ([]byte, bool, error) {
	old, loaded, err := s.db.Remove(key)
	if err != nil {
		return nil, false, backend("remove", err)
	}
	return old, loaded, nil
}

package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
)

// --------------------------------------------------------------------------
// Key interfaces
// --------------------------------------------------------------------------

// KeyMarshaler is implemented by types that encode themselves as keys.
// The returned bytes are appended verbatim.
type KeyMarshaler interface {
	MarshalKey() ([]byte, error)
}

// KeyUnmarshaler is implemented by pointer types that decode themselves from
// the front of b. It returns the number of bytes consumed.
type KeyUnmarshaler interface {
	UnmarshalKey(b []byte) (int, error)
}

var (
	// ErrShortKey is returned when a key ends before the value is complete.
	ErrShortKey = errors.New("key too short")

	// ErrTrailingBytes is returned by DecodeKey when bytes remain after the value.
	ErrTrailingBytes = errors.New("trailing bytes after key")

	keyMarshalerType   = reflect.TypeOf((*KeyMarshaler)(nil)).Elem()
	keyUnmarshalerType = reflect.TypeOf((*KeyUnmarshaler)(nil)).Elem()
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// EncodeKey encodes v with the fixed width big endian key format.
//
// Format:
//   - bool: one byte (0 or 1)
//   - unsigned integers: big endian, 1/2/4/8 bytes (uint and uintptr use 8)
//   - signed integers: like unsigned with the sign bit flipped, so negative
//     numbers sort before positive ones
//   - floats: IEEE 754 bits, all bits flipped for negatives and only the
//     sign bit flipped otherwise, so byte order equals numeric order
//   - string and []byte: 8 byte big endian length followed by the bytes
//   - arrays: the elements back to back
//   - slices: 8 byte length followed by the elements
//   - structs: the exported fields in declaration order
//   - pointers: the pointed-to value (nil pointers are rejected)
//   - types implementing KeyMarshaler: their own encoding
//
// For fixed width types the byte order of the encoding equals the natural
// order of the values. Length prefixed types order by length first.
func EncodeKey(v any) ([]byte, error) {
	return AppendKey(nil, v)
}

// AppendKey appends the key encoding of v to dst.
func AppendKey(dst []byte, v any) ([]byte, error) {
	switch k := v.(type) {
	case KeyMarshaler:
		b, err := k.MarshalKey()
		if err != nil {
			return dst, err
		}
		return append(dst, b...), nil
	case uint64:
		return binary.BigEndian.AppendUint64(dst, k), nil
	case uint32:
		return binary.BigEndian.AppendUint32(dst, k), nil
	case uint8:
		return append(dst, k), nil
	case int64:
		return binary.BigEndian.AppendUint64(dst, uint64(k)^(1<<63)), nil
	case int:
		return binary.BigEndian.AppendUint64(dst, uint64(k)^(1<<63)), nil
	case string:
		dst = binary.BigEndian.AppendUint64(dst, uint64(len(k)))
		return append(dst, k...), nil
	case []byte:
		dst = binary.BigEndian.AppendUint64(dst, uint64(len(k)))
		return append(dst, k...), nil
	case nil:
		return dst, fmt.Errorf("cannot encode nil as key")
	}
	return appendValue(dst, reflect.ValueOf(v))
}

func appendValue(dst []byte, v reflect.Value) ([]byte, error) {
	if v.Type().Implements(keyMarshalerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return dst, fmt.Errorf("cannot encode nil %s as key", v.Type())
		}
		return AppendKey(dst, v.Interface())
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case reflect.Uint8:
		return append(dst, uint8(v.Uint())), nil
	case reflect.Uint16:
		return binary.BigEndian.AppendUint16(dst, uint16(v.Uint())), nil
	case reflect.Uint32:
		return binary.BigEndian.AppendUint32(dst, uint32(v.Uint())), nil
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return binary.BigEndian.AppendUint64(dst, v.Uint()), nil
	case reflect.Int8:
		return append(dst, uint8(v.Int())^0x80), nil
	case reflect.Int16:
		return binary.BigEndian.AppendUint16(dst, uint16(v.Int())^(1<<15)), nil
	case reflect.Int32:
		return binary.BigEndian.AppendUint32(dst, uint32(v.Int())^(1<<31)), nil
	case reflect.Int64, reflect.Int:
		return binary.BigEndian.AppendUint64(dst, uint64(v.Int())^(1<<63)), nil
	case reflect.Float32:
		bits := math.Float32bits(float32(v.Float()))
		if bits&(1<<31) != 0 {
			bits = ^bits
		} else {
			bits ^= 1 << 31
		}
		return binary.BigEndian.AppendUint32(dst, bits), nil
	case reflect.Float64:
		bits := math.Float64bits(v.Float())
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits ^= 1 << 63
		}
		return binary.BigEndian.AppendUint64(dst, bits), nil
	case reflect.String:
		dst = binary.BigEndian.AppendUint64(dst, uint64(v.Len()))
		return append(dst, v.String()...), nil
	case reflect.Slice:
		dst = binary.BigEndian.AppendUint64(dst, uint64(v.Len()))
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return append(dst, v.Bytes()...), nil
		}
		return appendElems(dst, v)
	case reflect.Array:
		return appendElems(dst, v)
	case reflect.Struct:
		var err error
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if dst, err = appendValue(dst, v.Field(i)); err != nil {
				return dst, err
			}
		}
		return dst, nil
	case reflect.Pointer:
		if v.IsNil() {
			return dst, fmt.Errorf("cannot encode nil %s as key", v.Type())
		}
		return appendValue(dst, v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return dst, fmt.Errorf("cannot encode nil interface as key")
		}
		return appendValue(dst, v.Elem())
	default:
		return dst, fmt.Errorf("unsupported key type %s", v.Type())
	}
}

func appendElems(dst []byte, v reflect.Value) ([]byte, error) {
	var err error
	for i := 0; i < v.Len(); i++ {
		if dst, err = appendValue(dst, v.Index(i)); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// DecodeKey decodes the whole of b into the value pointed to by ptr.
func DecodeKey(b []byte, ptr any) error {
	n, err := DecodeKeyPrefix(b, ptr)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("%w: %d of %d bytes used", ErrTrailingBytes, n, len(b))
	}
	return nil
}

// DecodeKeyPrefix decodes a value from the front of b into ptr and returns
// the number of bytes consumed.
func DecodeKeyPrefix(b []byte, ptr any) (int, error) {
	switch p := ptr.(type) {
	case KeyUnmarshaler:
		return p.UnmarshalKey(b)
	case *uint64:
		if len(b) < 8 {
			return 0, ErrShortKey
		}
		*p = binary.BigEndian.Uint64(b)
		return 8, nil
	case *string:
		n, s, err := readLen(b)
		if err != nil {
			return 0, err
		}
		*p = string(s)
		return n, nil
	}

	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return 0, fmt.Errorf("decode target must be a non-nil pointer, got %T", ptr)
	}
	return decodeValue(b, v.Elem())
}

// DecodeKeyAs decodes the whole of b as a K.
func DecodeKeyAs[K any](b []byte) (K, error) {
	var k K
	err := DecodeKey(b, &k)
	return k, err
}

func readLen(b []byte) (int, []byte, error) {
	if len(b) < 8 {
		return 0, nil, ErrShortKey
	}
	l := binary.BigEndian.Uint64(b)
	if l > uint64(len(b)-8) {
		return 0, nil, ErrShortKey
	}
	return 8 + int(l), b[8 : 8+l], nil
}

func fixed(b []byte, n int) ([]byte, error) {
	if len(b) < n {
		return nil, ErrShortKey
	}
	return b[:n], nil
}

func decodeValue(b []byte, v reflect.Value) (int, error) {
	if v.CanAddr() && v.Addr().Type().Implements(keyUnmarshalerType) {
		return v.Addr().Interface().(KeyUnmarshaler).UnmarshalKey(b)
	}

	switch v.Kind() {
	case reflect.Bool:
		f, err := fixed(b, 1)
		if err != nil {
			return 0, err
		}
		v.SetBool(f[0] != 0)
		return 1, nil
	case reflect.Uint8:
		f, err := fixed(b, 1)
		if err != nil {
			return 0, err
		}
		v.SetUint(uint64(f[0]))
		return 1, nil
	case reflect.Uint16:
		f, err := fixed(b, 2)
		if err != nil {
			return 0, err
		}
		v.SetUint(uint64(binary.BigEndian.Uint16(f)))
		return 2, nil
	case reflect.Uint32:
		f, err := fixed(b, 4)
		if err != nil {
			return 0, err
		}
		v.SetUint(uint64(binary.BigEndian.Uint32(f)))
		return 4, nil
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		f, err := fixed(b, 8)
		if err != nil {
			return 0, err
		}
		v.SetUint(binary.BigEndian.Uint64(f))
		return 8, nil
	case reflect.Int8:
		f, err := fixed(b, 1)
		if err != nil {
			return 0, err
		}
		v.SetInt(int64(int8(f[0] ^ 0x80)))
		return 1, nil
	case reflect.Int16:
		f, err := fixed(b, 2)
		if err != nil {
			return 0, err
		}
		v.SetInt(int64(int16(binary.BigEndian.Uint16(f) ^ (1 << 15))))
		return 2, nil
	case reflect.Int32:
		f, err := fixed(b, 4)
		if err != nil {
			return 0, err
		}
		v.SetInt(int64(int32(binary.BigEndian.Uint32(f) ^ (1 << 31))))
		return 4, nil
	case reflect.Int64, reflect.Int:
		f, err := fixed(b, 8)
		if err != nil {
			return 0, err
		}
		v.SetInt(int64(binary.BigEndian.Uint64(f) ^ (1 << 63)))
		return 8, nil
	case reflect.Float32:
		f, err := fixed(b, 4)
		if err != nil {
			return 0, err
		}
		bits := binary.BigEndian.Uint32(f)
		if bits&(1<<31) != 0 {
			bits ^= 1 << 31
		} else {
			bits = ^bits
		}
		v.SetFloat(float64(math.Float32frombits(bits)))
		return 4, nil
	case reflect.Float64:
		f, err := fixed(b, 8)
		if err != nil {
			return 0, err
		}
		bits := binary.BigEndian.Uint64(f)
		if bits&(1<<63) != 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		v.SetFloat(math.Float64frombits(bits))
		return 8, nil
	case reflect.String:
		n, s, err := readLen(b)
		if err != nil {
			return 0, err
		}
		v.SetString(string(s))
		return n, nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			n, s, err := readLen(b)
			if err != nil {
				return 0, err
			}
			v.SetBytes(append([]byte{}, s...))
			return n, nil
		}
		f, err := fixed(b, 8)
		if err != nil {
			return 0, err
		}
		l := binary.BigEndian.Uint64(f)
		if l > uint64(len(b)) {
			return 0, ErrShortKey
		}
		s := reflect.MakeSlice(v.Type(), int(l), int(l))
		n, err := decodeElems(b[8:], s)
		if err != nil {
			return 0, err
		}
		v.Set(s)
		return 8 + n, nil
	case reflect.Array:
		return decodeElems(b, v)
	case reflect.Struct:
		off := 0
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			n, err := decodeValue(b[off:], v.Field(i))
			if err != nil {
				return 0, err
			}
			off += n
		}
		return off, nil
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		n, err := decodeValue(b, elem.Elem())
		if err != nil {
			return 0, err
		}
		v.Set(elem)
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported key type %s", v.Type())
	}
}

func decodeElems(b []byte, v reflect.Value) (int, error) {
	off := 0
	for i := 0; i < v.Len(); i++ {
		n, err := decodeValue(b[off:], v.Index(i))
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

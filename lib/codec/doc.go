// Package codec converts typed keys and values into the bytes kept by a
// db.ByteStore.
//
// Keys use a fixed width big endian format (see EncodeKey) so that the byte
// order of encoded integers matches their numeric order. The collection layer
// relies on this to find the first and last element of a list with a single
// ordered lookup.
//
// Values go through a pluggable ValueCodec. Gob is the default, JSON v2 with
// deterministic output is available for values that contain maps.
package codec

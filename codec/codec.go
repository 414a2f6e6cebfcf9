// Package codec is the fixed binary layout of a telemetry record on the
// radio link.
//
// Layout, little endian:
//
//	version(1) | presence(1) | present fields in bit order
//
// Presence bit 0 longitude, 1 latitude, 2 GPS altitude, 3 barometric
// altitude, 4 relative altitude, 5 time of day. Altitudes and coordinates
// are float32, the time of day is a uint32 HHMMSS. Anything after the last
// present field is padding and ignored by Decode.
package codec

import (
	"encoding/binary"
	"fmt"
	"github.com/jd3nn1s/flightlink"
	"github.com/pkg/errors"
	"math"
)

const (
	// MaxPayload is the largest packet the radio carries.
	MaxPayload = 255

	Version    = 1
	headerSize = 2
	fieldSize  = 4
)

const (
	bitLongitude uint8 = 1 << iota
	bitLatitude
	bitGPSAltitude
	bitBaroAltitude
	bitRelativeAltitude
	bitTimeOfDay

	knownBits = bitLongitude | bitLatitude | bitGPSAltitude | bitBaroAltitude | bitRelativeAltitude | bitTimeOfDay
)

var (
	ErrEncodeOverflow = errors.New("encoded record does not fit")
	ErrDecode         = errors.New("malformed record")
)

type EncodeOverflowError struct {
	Need int
	Have int
}

func (e *EncodeOverflowError) Error() string {
	return fmt.Sprintf("%v: need %d bytes, have %d", ErrEncodeOverflow, e.Need, e.Have)
}

func (e *EncodeOverflowError) Is(target error) bool {
	return target == ErrEncodeOverflow
}

type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v at byte %d: %s", ErrDecode, e.Offset, e.Reason)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// field binds a presence bit to its slot in the record.
type field struct {
	bit uint8
	f32 func(r *flightlink.Record) **float32
	u32 func(r *flightlink.Record) **uint32
}

var fields = []field{
	{bit: bitLongitude, f32: func(r *flightlink.Record) **float32 { return &r.Longitude }},
	{bit: bitLatitude, f32: func(r *flightlink.Record) **float32 { return &r.Latitude }},
	{bit: bitGPSAltitude, f32: func(r *flightlink.Record) **float32 { return &r.GPSAltitude }},
	{bit: bitBaroAltitude, f32: func(r *flightlink.Record) **float32 { return &r.BaroAltitude }},
	{bit: bitRelativeAltitude, f32: func(r *flightlink.Record) **float32 { return &r.RelativeAltitude }},
	{bit: bitTimeOfDay, u32: func(r *flightlink.Record) **uint32 { return &r.TimeOfDay }},
}

func (f field) present(r *flightlink.Record) bool {
	if f.f32 != nil {
		return *f.f32(r) != nil
	}
	return *f.u32(r) != nil
}

func presence(r *flightlink.Record) uint8 {
	var p uint8
	for _, f := range fields {
		if f.present(r) {
			p |= f.bit
		}
	}
	return p
}

// EncodedLen is the number of bytes Encode writes for r.
func EncodedLen(r flightlink.Record) int {
	n := headerSize
	for _, f := range fields {
		if f.present(&r) {
			n += fieldSize
		}
	}
	return n
}

// Encode writes r to the front of dst and returns the number of bytes
// written. dst is left untouched when the encoding does not fit.
func Encode(r flightlink.Record, dst []byte) (int, error) {
	n := EncodedLen(r)
	limit := len(dst)
	if limit > MaxPayload {
		limit = MaxPayload
	}
	if n > limit {
		return 0, &EncodeOverflowError{Need: n, Have: limit}
	}

	dst[0] = Version
	dst[1] = presence(&r)
	off := headerSize
	for _, f := range fields {
		if !f.present(&r) {
			continue
		}
		var v uint32
		if f.f32 != nil {
			v = math.Float32bits(**f.f32(&r))
		} else {
			v = **f.u32(&r)
		}
		binary.LittleEndian.PutUint32(dst[off:], v)
		off += fieldSize
	}
	return off, nil
}

// Marshal allocates a buffer of exactly the encoded length.
func Marshal(r flightlink.Record) ([]byte, error) {
	buf := make([]byte, EncodedLen(r))
	n, err := Encode(r, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode reads a record from the front of b. Trailing bytes are ignored.
func Decode(b []byte) (flightlink.Record, error) {
	var r flightlink.Record
	if len(b) < headerSize {
		return r, &DecodeError{Offset: len(b), Reason: "short header"}
	}
	if b[0] != Version {
		return r, &DecodeError{Offset: 0, Reason: fmt.Sprintf("unknown version %d", b[0])}
	}
	p := b[1]
	if p&^knownBits != 0 {
		return r, &DecodeError{Offset: 1, Reason: fmt.Sprintf("unknown presence bits %#02x", p&^knownBits)}
	}
	off := headerSize
	for _, f := range fields {
		if p&f.bit == 0 {
			continue
		}
		if len(b) < off+fieldSize {
			return flightlink.Record{}, &DecodeError{Offset: off, Reason: "truncated field"}
		}
		v := binary.LittleEndian.Uint32(b[off:])
		if f.f32 != nil {
			*f.f32(&r) = flightlink.Float32(math.Float32frombits(v))
		} else {
			*f.u32(&r) = flightlink.Uint32(v)
		}
		off += fieldSize
	}
	return r, nil
}

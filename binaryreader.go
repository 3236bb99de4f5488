// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package unitybundle

import (
	"encoding/binary"
	"io"
	"math"
)

// Endianness selects the byte order used by Reader's fixed-width reads.
type Endianness uint8

// The two endiannesses a bundle or asset header can declare.
const (
	BigEndian Endianness = iota
	LittleEndian
)

// Teller is implemented by any stream that tracks its own virtual cursor,
// independent of the position of whatever it wraps. BlockStorageReader and
// Reader both satisfy it.
type Teller interface {
	Tell() int64
	Align()
}

// Reader is an endian-aware cursor over any io.ReadSeeker. It tracks its own
// cursor separately from the underlying stream so that Tell is O(1) even
// when the underlying stream is itself a derived/virtual one (BlockStorageReader).
type Reader struct {
	src        io.ReadSeeker
	cursor     int64
	endianness Endianness
}

// NewReader wraps src for endian-aware reads, starting in the given byte order.
func NewReader(src io.ReadSeeker, endianness Endianness) *Reader {
	return &Reader{src: src, endianness: endianness}
}

// SetEndianness changes the byte order used by subsequent fixed-width reads.
// Assets flip this once they've read their own format-9+ endianness flag.
func (r *Reader) SetEndianness(e Endianness) { r.endianness = e }

// Endianness reports the reader's current byte order.
func (r *Reader) Endianness() Endianness { return r.endianness }

// Tell returns the reader's current virtual position.
func (r *Reader) Tell() int64 { return r.cursor }

// Seek repositions the reader, updating the tracked cursor from the
// underlying stream's own seek result.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.src.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	r.cursor = pos
	return pos, nil
}

// Align rounds the cursor up to the next multiple of 4; a no-op if already aligned.
func (r *Reader) Align() {
	old := r.cursor
	next := (old + 3) &^ 3
	if next > old {
		_, _ = r.Seek(next, io.SeekStart)
	}
}

func (r *Reader) order() binary.ByteOrder {
	if r.endianness == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ReadBytes reads exactly n bytes, returning a short-read error otherwise.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		return nil, err
	}
	r.cursor += int64(n)
	return buf, nil
}

// ReadU8 reads a single unsigned byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads a single signed byte.
func (r *Reader) ReadI8() (int8, error) {
	b, err := r.ReadU8()
	return int8(b), err
}

// ReadBool reads one byte and reports whether it is non-zero.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	return b != 0, err
}

// ReadU16 reads an unsigned 16-bit integer in the reader's byte order.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order().Uint16(b), nil
}

// ReadI16 reads a signed 16-bit integer in the reader's byte order.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads an unsigned 32-bit integer in the reader's byte order.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order().Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer in the reader's byte order.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 reads an unsigned 64-bit integer in the reader's byte order.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order().Uint64(b), nil
}

// ReadI64 reads a signed 64-bit integer in the reader's byte order.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE-754 single-precision float in the reader's byte order.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadCString reads bytes up to and including a NUL terminator, decoding
// each byte as a character in [0,255].
func (r *Reader) ReadCString() (string, error) {
	var buf []rune
	for {
		b, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, rune(b))
	}
	return string(buf), nil
}

// ReadSizedString reads n raw bytes and returns them decoded as UTF-8.
func (r *Reader) ReadSizedString(n uint32) (string, error) {
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

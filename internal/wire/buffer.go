// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"encoding/binary"
	"errors"
)

var errBufferUnderrun = errors.New("wire: buffer underrun")

// writer accumulates a frame payload with fixed-width big-endian fields and
// length-prefixed strings, avoiding any reflection-based encoding.
type writer struct {
	buf []byte
}

func newWriter(code Code) *writer {
	w := &writer{buf: make([]byte, 0, 64)}
	w.buf = append(w.buf, byte(code))
	return w
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) i8(v int8)    { w.u8(uint8(v)) }
func (w *writer) u16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }

func (w *writer) str(s string) {
	w.u8(uint8(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytes() []byte { return w.buf }

// reader consumes a frame payload written by writer, after the leading code
// byte has already been stripped by the caller.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, errBufferUnderrun
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, errBufferUnderrun
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errBufferUnderrun
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) str() (string, error) {
	n, err := r.u8()
	if err != nil {
		return "", err
	}
	if r.remaining() < int(n) {
		return "", errBufferUnderrun
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

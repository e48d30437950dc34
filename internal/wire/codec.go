package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// Binary payloads are a flat field sequence: float64s as big-endian IEEE
// bits, strings length-prefixed with a uint16, optional strings preceded
// by a presence byte. Decoding a short or trailing-garbage buffer fails.

var (
	ErrShortPayload = errors.New("wire: payload too short")
	ErrTrailingData = errors.New("wire: trailing bytes after payload")
)

type encoder struct {
	buf []byte
}

func (e *encoder) writeFloat(f float64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(f))
}

func (e *encoder) writeString(s string) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeOptString(s string, present bool) {
	if !present {
		e.buf = append(e.buf, 0)
		return
	}
	e.buf = append(e.buf, 1)
	e.writeString(s)
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) readFloat() float64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 8 {
		d.err = ErrShortPayload
		return 0
	}
	f := math.Float64frombits(binary.BigEndian.Uint64(d.buf))
	d.buf = d.buf[8:]
	return f
}

func (d *decoder) readString() string {
	if d.err != nil {
		return ""
	}
	if len(d.buf) < 2 {
		d.err = ErrShortPayload
		return ""
	}
	n := int(binary.BigEndian.Uint16(d.buf))
	d.buf = d.buf[2:]
	if len(d.buf) < n {
		d.err = ErrShortPayload
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

func (d *decoder) readOptString() (string, bool) {
	if d.err != nil {
		return "", false
	}
	if len(d.buf) < 1 {
		d.err = ErrShortPayload
		return "", false
	}
	present := d.buf[0] == 1
	d.buf = d.buf[1:]
	if !present {
		return "", false
	}
	return d.readString(), d.err == nil
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.buf) != 0 {
		return ErrTrailingData
	}
	return nil
}

// Package codec примитивы двоичной записи и чтения в little-endian.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer данные закончились раньше, чем ожидалось
var ErrShortBuffer = errors.New("недостаточно данных")

// Writer пишет примитивы в little-endian
type Writer struct {
	buf []byte
}

// NewWriter создаёт writer с заранее выделенной ёмкостью
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) I32(v int32)  { w.U32(uint32(v)) }
func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// String пишет u32 длину и UTF-8 байты
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Bytes пишет u32 длину и байты
func (w *Writer) Bytes(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Raw пишет байты без длины
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Data возвращает накопленные байты
func (w *Writer) Data() []byte { return w.buf }

// Len текущий размер
func (w *Writer) Len() int { return len(w.buf) }

// Reader читает примитивы в little-endian.
// Первая ошибка запоминается, последующие чтения возвращают нули.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader создаёт reader поверх среза
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: нужно %d байт на позиции %d из %d", ErrShortBuffer, n, r.pos, len(r.data))
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool { return r.U8() != 0 }

func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }
func (r *Reader) F64() float64 { return math.Float64frombits(r.U64()) }

// String читает строку с u32 длиной
func (r *Reader) String() string {
	n := r.U32()
	return string(r.take(int(n)))
}

// Bytes читает байты с u32 длиной (копия)
func (r *Reader) Bytes() []byte {
	n := r.U32()
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Remaining число непрочитанных байт
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Err первая ошибка чтения
func (r *Reader) Err() error {
	return r.err
}

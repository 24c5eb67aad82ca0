// Package cborarray encodes and decodes RFC 8746 typed arrays: a tag 40
// multi-dimensional array wrapping a little-endian typed array tag.
package cborarray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

const (
	TagMultiDimArray = 40
	TagUint8         = 64
	TagUint16LE      = 69
	TagUint32LE      = 70
	TagFloat32LE     = 85
	TagFloat64LE     = 86
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// Array is a decoded two-dimensional array. Data is a flat row-major slice of
// []uint8, []uint16, []uint32, []float32 or []float64.
type Array struct {
	Rows int
	Cols int
	Data any
}

func DecodeMultiDim(value any) (Array, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != TagMultiDimArray {
		return Array{}, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return Array{}, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) != 2 {
		return Array{}, fmt.Errorf("invalid multidim dimensions")
	}

	rows, err := ToInt(dimsRaw[0])
	if err != nil {
		return Array{}, err
	}
	cols, err := ToInt(dimsRaw[1])
	if err != nil {
		return Array{}, err
	}
	if rows < 0 || cols < 0 {
		return Array{}, fmt.Errorf("negative dimensions %dx%d", rows, cols)
	}

	flat, err := DecodeTyped(items[1])
	if err != nil {
		return Array{}, err
	}
	if n := length(flat); n != rows*cols {
		return Array{}, fmt.Errorf("%w: %d values for %dx%d", ErrDimensionMismatch, n, rows, cols)
	}
	return Array{Rows: rows, Cols: cols, Data: flat}, nil
}

func DecodeTyped(value any) (any, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected typed array tag")
	}

	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}

	switch tag.Number {
	case TagUint8:
		return data, nil
	case TagUint16LE:
		return bytesToUint16(data), nil
	case TagUint32LE:
		return bytesToUint32(data), nil
	case TagFloat32LE:
		return bytesToFloat32(data), nil
	case TagFloat64LE:
		return bytesToFloat64(data), nil
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
}

// EncodeMultiDim wraps a flat row-major slice in tag 40.
func EncodeMultiDim(rows, cols int, data any) (cbor.Tag, error) {
	if n := length(data); n != rows*cols {
		return cbor.Tag{}, fmt.Errorf("%w: %d values for %dx%d", ErrDimensionMismatch, n, rows, cols)
	}

	var typed cbor.Tag
	switch v := data.(type) {
	case []uint8:
		typed = cbor.Tag{Number: TagUint8, Content: v}
	case []uint16:
		buf := make([]byte, len(v)*2)
		for i, x := range v {
			binary.LittleEndian.PutUint16(buf[i*2:], x)
		}
		typed = cbor.Tag{Number: TagUint16LE, Content: buf}
	case []float64:
		buf := make([]byte, len(v)*8)
		for i, x := range v {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
		}
		typed = cbor.Tag{Number: TagFloat64LE, Content: buf}
	default:
		return cbor.Tag{}, fmt.Errorf("unsupported array type %T", data)
	}

	return cbor.Tag{
		Number:  TagMultiDimArray,
		Content: []any{[]any{rows, cols}, typed},
	}, nil
}

// Uint16s widens integer arrays to 16-bit samples and reports the source bit depth.
func (a Array) Uint16s() ([]uint16, int, error) {
	switch v := a.Data.(type) {
	case []uint8:
		out := make([]uint16, len(v))
		for i, x := range v {
			out[i] = uint16(x)
		}
		return out, 8, nil
	case []uint16:
		return v, 16, nil
	default:
		return nil, 0, fmt.Errorf("array of %T is not an intensity image", a.Data)
	}
}

func (a Array) Float64s() ([]float64, error) {
	switch v := a.Data.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []uint16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []uint32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported array type %T", a.Data)
	}
}

func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

func length(data any) int {
	switch v := data.(type) {
	case []uint8:
		return len(v)
	case []uint16:
		return len(v)
	case []uint32:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	default:
		return -1
	}
}

func bytesToUint16(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := 0; i < len(out); i++ {
		out[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return out
}

func bytesToUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := 0; i < len(out); i++ {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := 0; i < len(out); i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func bytesToFloat64(data []byte) []float64 {
	out := make([]float64, len(data)/8)
	for i := 0; i < len(out); i++ {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

package channel

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/pflow/archive"
	"github.com/pthm-cable/pflow/ptime"
)

// Kind tags the value type of a channel in saved files.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt32
	KindInt64
	KindFloat32
	KindVector
	KindQuat
	KindTime
)

// Codec reads and writes single values of T.
type Codec[T any] interface {
	Kind() Kind
	Write(w *archive.Writer, v T)
	Read(r *archive.Reader) T
}

type boolCodec struct{}

func (boolCodec) Kind() Kind { return KindBool }
func (boolCodec) Write(w *archive.Writer, v bool) { w.Bool(v) }
func (boolCodec) Read(r *archive.Reader) bool { return r.Bool() }

type int32Codec struct{}

func (int32Codec) Kind() Kind { return KindInt32 }
func (int32Codec) Write(w *archive.Writer, v int32) { w.Int32(v) }
func (int32Codec) Read(r *archive.Reader) int32 { return r.Int32() }

type int64Codec struct{}

func (int64Codec) Kind() Kind { return KindInt64 }
func (int64Codec) Write(w *archive.Writer, v int64) { w.Int64(v) }
func (int64Codec) Read(r *archive.Reader) int64 { return r.Int64() }

type float32Codec struct{}

func (float32Codec) Kind() Kind { return KindFloat32 }
func (float32Codec) Write(w *archive.Writer, v float32) { w.Float32(v) }
func (float32Codec) Read(r *archive.Reader) float32 { return r.Float32() }

type vectorCodec struct{}

func (vectorCodec) Kind() Kind { return KindVector }

func (vectorCodec) Write(w *archive.Writer, v r3.Vec) {
	w.Float64(v.X)
	w.Float64(v.Y)
	w.Float64(v.Z)
}

func (vectorCodec) Read(r *archive.Reader) r3.Vec {
	return r3.Vec{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
}

type quatCodec struct{}

func (quatCodec) Kind() Kind { return KindQuat }

func (quatCodec) Write(w *archive.Writer, q quat.Number) {
	w.Float64(q.Real)
	w.Float64(q.Imag)
	w.Float64(q.Jmag)
	w.Float64(q.Kmag)
}

func (quatCodec) Read(r *archive.Reader) quat.Number {
	return quat.Number{Real: r.Float64(), Imag: r.Float64(), Jmag: r.Float64(), Kmag: r.Float64()}
}

type timeCodec struct{}

func (timeCodec) Kind() Kind { return KindTime }

func (timeCodec) Write(w *archive.Writer, t ptime.Time) {
	w.Int32(t.Tick)
	w.Float32(t.Frac)
}

func (timeCodec) Read(r *archive.Reader) ptime.Time {
	return ptime.Time{Tick: r.Int32(), Frac: r.Float32()}
}

// Codecs for every supported value type.
var (
	Bools    Codec[bool]        = boolCodec{}
	Int32s   Codec[int32]       = int32Codec{}
	Int64s   Codec[int64]       = int64Codec{}
	Float32s Codec[float32]     = float32Codec{}
	Vectors  Codec[r3.Vec]      = vectorCodec{}
	Quats    Codec[quat.Number] = quatCodec{}
	Times    Codec[ptime.Time]  = timeCodec{}
)

// newByKind creates an empty channel for a saved kind.
func newByKind(k Kind, id ID) (Channel, bool) {
	switch k {
	case KindBool:
		return NewTyped(id, Bools), true
	case KindInt32:
		return NewTyped(id, Int32s), true
	case KindInt64:
		return NewTyped(id, Int64s), true
	case KindFloat32:
		return NewTyped(id, Float32s), true
	case KindVector:
		return NewTyped(id, Vectors), true
	case KindQuat:
		return NewTyped(id, Quats), true
	case KindTime:
		return NewTyped(id, Times), true
	}
	return nil, false
}

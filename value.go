package zframe

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// Value is an immutable dynamically typed scalar or container.  The zero
// Value is Undefined.  Values returned by accessors that expose slices
// (Vector, List, Dict, Image, NDArray) must not be modified by callers.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	tz   int32
	vec  []float64
	list []Value
	dict []Pair
	img  *Image
	nd   *NDArray
}

// Pair is a dictionary entry.
type Pair struct {
	Key   Value
	Value Value
}

type ImageFormat uint8

const (
	ImageRaw ImageFormat = iota
	ImageJPEG
	ImagePNG
)

type Image struct {
	Width    int
	Height   int
	Channels int
	Format   ImageFormat
	Data     []byte
}

// NDArray is a dense row-major array of float64.
type NDArray struct {
	Shape []int
	Data  []float64
}

var Undefined = Value{}

func NewInt(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func NewFloat(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func NewString(s string) Value {
	return Value{kind: KindString, s: s}
}

func NewVector(vec []float64) Value {
	return Value{kind: KindVector, vec: slices.Clone(vec)}
}

func NewList(list []Value) Value {
	return Value{kind: KindList, list: slices.Clone(list)}
}

func NewDict(pairs []Pair) Value {
	return Value{kind: KindDict, dict: slices.Clone(pairs)}
}

// NewDatetime returns a datetime value holding the instant and zone offset
// of t.  Two datetimes are equal when they denote the same instant.
func NewDatetime(t time.Time) Value {
	_, offset := t.Zone()
	return Value{kind: KindDatetime, i: t.UnixNano(), tz: int32(offset)}
}

func NewImage(img Image) Value {
	img.Data = slices.Clone(img.Data)
	return Value{kind: KindImage, img: &img}
}

func NewNDArray(shape []int, data []float64) Value {
	return Value{kind: KindNDArray, nd: &NDArray{Shape: slices.Clone(shape), Data: slices.Clone(data)}}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsUndefined() bool {
	return v.kind == KindUndefined
}

// Int returns the integer value of v.  Floats are truncated; other kinds
// return 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float returns the floating point value of v.  Ints are converted; other
// kinds return 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	}
	return 0
}

// Str returns the string held by v, or its formatted form for other kinds.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return v.String()
}

func (v Value) Vector() []float64 {
	return v.vec
}

func (v Value) List() []Value {
	return v.list
}

func (v Value) Dict() []Pair {
	return v.dict
}

func (v Value) Datetime() time.Time {
	if v.kind != KindDatetime {
		return time.Time{}
	}
	loc := time.UTC
	if v.tz != 0 {
		loc = time.FixedZone("", int(v.tz))
	}
	return time.Unix(0, v.i).In(loc)
}

func (v Value) Image() *Image {
	return v.img
}

func (v Value) NDArray() *NDArray {
	return v.nd
}

// String implements fmt.Stringer.  It should only be used for logs,
// debugging and error messages.
func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	switch v.kind {
	case KindUndefined:
		b.WriteString("None")
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(v.s))
	case KindVector:
		b.WriteByte('[')
		for k, f := range v.vec {
			if k > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		b.WriteByte(']')
	case KindList:
		b.WriteByte('[')
		for k, elem := range v.list {
			if k > 0 {
				b.WriteString(", ")
			}
			elem.format(b)
		}
		b.WriteByte(']')
	case KindDict:
		b.WriteByte('{')
		for k, p := range v.dict {
			if k > 0 {
				b.WriteString(", ")
			}
			p.Key.format(b)
			b.WriteString(": ")
			p.Value.format(b)
		}
		b.WriteByte('}')
	case KindDatetime:
		b.WriteString(v.Datetime().Format(time.RFC3339Nano))
	case KindImage:
		b.WriteString("Image(")
		b.WriteString(strconv.Itoa(v.img.Width))
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(v.img.Height))
		b.WriteByte('x')
		b.WriteString(strconv.Itoa(v.img.Channels))
		b.WriteByte(')')
	case KindNDArray:
		b.WriteString("ndarray(shape=")
		for k, d := range v.nd.Shape {
			if k > 0 {
				b.WriteByte('x')
			}
			b.WriteString(strconv.Itoa(d))
		}
		b.WriteByte(')')
	}
}

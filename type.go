// Package zframe implements the dynamic value system shared by the column
// store, the join engine and the graph engine.  A Value is a closed tagged
// union over the kinds declared here.  Every operation on values (ordering,
// hashing, encoding) switches exhaustively on Kind so that equal values
// always hash equal and encode identically.
package zframe

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch = errors.New("type/value mismatch")
	ErrBadValue     = errors.New("malformed zframe value")
	ErrUnknownKind  = errors.New("unknown value kind")
)

// Kind identifies the variant held by a Value.  Columns declare a Kind and
// accept values of that Kind or Undefined.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindInt
	KindFloat
	KindString
	KindVector
	KindList
	KindDict
	KindDatetime
	KindImage
	KindNDArray
	numKinds
)

var kindNames = [numKinds]string{
	KindUndefined: "undefined",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindVector:    "vector",
	KindList:      "list",
	KindDict:      "dict",
	KindDatetime:  "datetime",
	KindImage:     "image",
	KindNDArray:   "ndarray",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k < numKinds
}

// IsNumeric is true for KindInt and KindFloat.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindUndefined, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// rank orders kinds for Compare.  Int and Float share a rank so that they
// compare numerically.
func (k Kind) rank() int {
	switch k {
	case KindUndefined:
		return 0
	case KindInt, KindFloat:
		return 1
	case KindString:
		return 2
	case KindVector:
		return 3
	case KindList:
		return 4
	case KindDict:
		return 5
	case KindDatetime:
		return 6
	case KindImage:
		return 7
	case KindNDArray:
		return 8
	}
	panic(fmt.Sprintf("zframe: bad kind %d", uint8(k)))
}

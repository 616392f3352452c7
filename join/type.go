package join

import (
	"fmt"
	"strings"
)

type Type int

const (
	Inner Type = iota
	Left
	Right
	Full
)

var typeNames = []string{
	Inner: "inner",
	Left:  "left",
	Right: "right",
	Full:  "full",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("join.Type(%d)", int(t))
}

// ParseType accepts a join type name in any case, with "outer" accepted
// for a full join.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(s)
	if s == "outer" {
		return Full, nil
	}
	for k, name := range typeNames {
		if name == s {
			return Type(k), nil
		}
	}
	return Inner, fmt.Errorf("unknown join type %q", s)
}

// keepLeft reports whether unmatched rows of the left input are emitted.
func (t Type) keepLeft() bool {
	return t == Left || t == Full
}

func (t Type) keepRight() bool {
	return t == Right || t == Full
}

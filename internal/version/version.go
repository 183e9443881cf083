// Package version implements the dotted numeric versions that identify a
// schema revision of one logical database.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidVersion = errors.New("invalid version")

type kind int8

const (
	kindMin kind = iota - 1
	kindValue
	kindMax
)

// Version is an immutable dotted numeric version such as "2.3.1".
//
// The zero value is not a valid version; use Parse, Min or Max.
type Version struct {
	kind  kind
	parts []int
	// raw keeps the text as written so String round-trips "1.01".
	raw string
}

var (
	// Min sorts before every parsed version. It marks an open lower bound.
	Min = Version{kind: kindMin}
	// Max sorts after every parsed version. It marks an open upper bound.
	Max = Version{kind: kindMax}
)

// Parse parses a dot-separated list of non-negative integers.
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}
	fields := strings.Split(s, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			return Version{}, fmt.Errorf("%w: %q has an empty component", ErrInvalidVersion, raw)
		}
		for _, r := range f {
			if r < '0' || r > '9' {
				return Version{}, fmt.Errorf("%w: %q has a non-numeric component %q", ErrInvalidVersion, raw, f)
			}
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, raw, err)
		}
		parts = append(parts, n)
	}
	return Version{kind: kindValue, parts: parts, raw: s}, nil
}

func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseBound parses a range bound where "*" means open. lower selects which
// sentinel an open bound maps to.
func ParseBound(raw string, lower bool) (Version, error) {
	if strings.TrimSpace(raw) == "*" {
		if lower {
			return Min, nil
		}
		return Max, nil
	}
	return Parse(raw)
}

func (v Version) IsMin() bool { return v.kind == kindMin }
func (v Version) IsMax() bool { return v.kind == kindMax }

// IsValid reports whether v was produced by Parse or is one of the sentinels.
func (v Version) IsValid() bool {
	return v.kind != kindValue || len(v.parts) > 0
}

// Components returns a copy of the numeric components.
func (v Version) Components() []int {
	out := make([]int, len(v.parts))
	copy(out, v.parts)
	return out
}

func (v Version) String() string {
	switch v.kind {
	case kindMin, kindMax:
		return "*"
	}
	return v.raw
}

// Compare compares a and b numerically, returning:
// -1 if a < b
//
//	0 if a == b
//	1 if a > b
//
// Components are compared left to right; when one version is a prefix of the
// other the shorter one sorts first, so "2.0" < "2.0.0".
func Compare(a, b Version) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	if a.kind != kindValue {
		return 0
	}
	for i := 0; i < len(a.parts) && i < len(b.parts); i++ {
		switch {
		case a.parts[i] < b.parts[i]:
			return -1
		case a.parts[i] > b.parts[i]:
			return 1
		}
	}
	switch {
	case len(a.parts) < len(b.parts):
		return -1
	case len(a.parts) > len(b.parts):
		return 1
	}
	return 0
}

func (v Version) Compare(o Version) int { return Compare(v, o) }
func (v Version) Equal(o Version) bool  { return Compare(v, o) == 0 }
func (v Version) Less(o Version) bool   { return Compare(v, o) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidVersion)
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "*" is not accepted
// because a bare value cannot tell which bound it stands for.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

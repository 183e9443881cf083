package version

import (
	"fmt"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// Latest selects the highest reachable version.
const Latest = "latest"

// Constraint is a semantic version constraint used to pick a target version.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
//
// Examples:
// - ">=1.2 <2.0"
// - "~2.1"
// - "latest"
type Constraint struct {
	c *mm.Constraints
}

func ParseConstraint(raw string) (Constraint, error) {
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, Latest) {
		s = "*"
	}
	c, err := mm.NewConstraint(s)
	if err != nil {
		return Constraint{}, fmt.Errorf("version: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c}, nil
}

func MustParseConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Satisfies reports whether v matches c. Versions with more than three
// components, and the Min/Max sentinels, never satisfy a constraint.
func Satisfies(v Version, c Constraint) bool {
	if c.c == nil || v.kind != kindValue || len(v.parts) == 0 || len(v.parts) > 3 {
		return false
	}
	nums := make([]string, len(v.parts))
	for i, p := range v.parts {
		nums[i] = strconv.Itoa(p)
	}
	sv, err := mm.NewVersion(strings.Join(nums, "."))
	if err != nil {
		return false
	}
	return c.c.Check(sv)
}

// MaxSatisfying returns the highest version in candidates that satisfies c.
//
// If multiple versions are equal, the first encountered wins.
func MaxSatisfying(c Constraint, candidates []Version) (Version, bool) {
	var best Version
	found := false
	for _, candidate := range candidates {
		if !Satisfies(candidate, c) {
			continue
		}
		if !found || Compare(candidate, best) > 0 {
			best = candidate
			found = true
		}
	}
	return best, found
}

func (c Constraint) String() string {
	if c.c == nil {
		return ""
	}
	return c.c.String()
}

// Package version implements package version comparison and dependency
// constraints with the same semantics as pacman's vercmp.
package version

import (
	"fmt"
	"strings"
)

// Compare compares two full versions of the form [epoch:]version[-release].
// It returns -1 if a is older than b, 0 if they are equal and 1 if a is newer.
// The release is only compared when both sides carry one.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	epochA, verA, relA := splitEVR(a)
	epochB, verB, relB := splitEVR(b)

	if r := compareSegments(epochA, epochB); r != 0 {
		return r
	}
	if r := compareSegments(verA, verB); r != 0 {
		return r
	}
	if relA != "" && relB != "" {
		return compareSegments(relA, relB)
	}
	return 0
}

// splitEVR splits a version into epoch, version and release. A missing
// epoch is "0" and a missing release is empty.
func splitEVR(s string) (epoch, ver, rel string) {
	epoch = "0"

	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == ':' {
		if i > 0 {
			epoch = s[:i]
		}
		s = s[i+1:]
	}

	if j := strings.LastIndexByte(s, '-'); j >= 0 {
		return epoch, s[:j], s[j+1:]
	}
	return epoch, s, ""
}

// compareSegments compares two version fragments segment by segment. Runs of
// digits compare numerically and beat runs of letters; separators only
// matter through their length.
func compareSegments(a, b string) int {
	if a == b {
		return 0
	}

	one, two := 0, 0
	for one < len(a) && two < len(b) {
		start1, start2 := one, two
		for one < len(a) && !isAlnum(a[one]) {
			one++
		}
		for two < len(b) && !isAlnum(b[two]) {
			two++
		}
		if one >= len(a) || two >= len(b) {
			break
		}
		if one-start1 != two-start2 {
			if one-start1 < two-start2 {
				return -1
			}
			return 1
		}

		end1, end2 := one, two
		isNum := isDigit(a[one])
		if isNum {
			for end1 < len(a) && isDigit(a[end1]) {
				end1++
			}
			for end2 < len(b) && isDigit(b[end2]) {
				end2++
			}
		} else {
			for end1 < len(a) && isAlpha(a[end1]) {
				end1++
			}
			for end2 < len(b) && isAlpha(b[end2]) {
				end2++
			}
		}

		seg1, seg2 := a[one:end1], b[two:end2]
		if seg2 == "" {
			// segment types differ: numbers are newer than letters
			if isNum {
				return 1
			}
			return -1
		}

		if isNum {
			seg1 = strings.TrimLeft(seg1, "0")
			seg2 = strings.TrimLeft(seg2, "0")
			if len(seg1) != len(seg2) {
				if len(seg1) > len(seg2) {
					return 1
				}
				return -1
			}
		}
		if r := strings.Compare(seg1, seg2); r != 0 {
			return r
		}

		one, two = end1, end2
	}

	rest1, rest2 := a[one:], b[two:]
	if rest1 == "" && rest2 == "" {
		return 0
	}
	// A trailing alpha segment never beats an empty one ("1.0a" < "1.0"),
	// anything else that remains makes that side newer.
	if (rest1 == "" && !startsAlpha(rest2)) || startsAlpha(rest1) {
		return -1
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }

func startsAlpha(s string) bool { return s != "" && isAlpha(s[0]) }

// Operator is a dependency comparison operator.
type Operator string

const (
	OpNone Operator = ""
	OpLE   Operator = "<="
	OpGE   Operator = ">="
	OpLT   Operator = "<"
	OpEQ   Operator = "="
	OpGT   Operator = ">"
)

// operators is ordered so that two-character operators are tried first.
var operators = []Operator{OpLE, OpGE, OpLT, OpEQ, OpGT}

// Constraint is a parsed dependency specification such as "libx>=1.5".
type Constraint struct {
	Name    string
	Op      Operator
	Version string
}

// ParseConstraint parses a dependency specification. A specification without
// an operator yields a Constraint that any version satisfies.
func ParseConstraint(spec string) Constraint {
	spec = strings.TrimSpace(spec)
	for _, op := range operators {
		if i := strings.Index(spec, string(op)); i >= 0 {
			return Constraint{
				Name:    strings.TrimSpace(spec[:i]),
				Op:      op,
				Version: strings.TrimSpace(spec[i+len(op):]),
			}
		}
	}
	return Constraint{Name: spec}
}

// Satisfied reports whether v meets the constraint.
func (c Constraint) Satisfied(v string) bool {
	if c.Op == OpNone || c.Version == "" {
		return true
	}
	r := Compare(v, c.Version)
	switch c.Op {
	case OpLT:
		return r < 0
	case OpLE:
		return r <= 0
	case OpEQ:
		return r == 0
	case OpGE:
		return r >= 0
	case OpGT:
		return r > 0
	}
	return false
}

func (c Constraint) String() string {
	if c.Op == OpNone {
		return c.Name
	}
	return fmt.Sprintf("%s%s%s", c.Name, c.Op, c.Version)
}

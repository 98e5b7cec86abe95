package protocol

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed server version: major.minor.micro.
type Version struct {
	Major uint8
	Minor uint8
	Micro uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Compare returns -1, 0 or +1 depending on whether v is older, equal or newer than other.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Micro, other.Micro)
}

var componentNames = [3]string{"major", "minor", "micro"}

// ParseVersion parses "<major>.<minor>.<micro>[-<marker>]".
//
// Each component must be a run of ASCII digits that fits in a uint8.
// Out of range values return a *RangeError, anything else malformed a
// *ParseError. On error the returned Version is always the zero value.
func ParseVersion(text string) (Version, error) {
	core, _, _ := strings.Cut(text, string(SuffixSeparator))

	parts := strings.Split(core, string(ComponentSeparator))
	if len(parts) != len(componentNames) {
		return Version{}, &ParseError{Message: fmt.Sprintf("version %q does not have %d components", text, len(componentNames))}
	}

	var components [3]uint8
	for i, part := range parts {
		n, err := parseComponent(componentNames[i], part)
		if err != nil {
			return Version{}, err
		}
		components[i] = n
	}

	return Version{Major: components[0], Minor: components[1], Micro: components[2]}, nil
}

func parseComponent(name, s string) (uint8, error) {
	if s == "" {
		return 0, &ParseError{Message: "empty " + name + " version component"}
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, &ParseError{Message: fmt.Sprintf("non-numeric %s version component %q", name, s)}
		}
	}

	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &RangeError{Component: name, Value: s}
		}
		return 0, &ParseError{Message: "invalid " + name + " version component", Err: err}
	}

	return uint8(n), nil
}

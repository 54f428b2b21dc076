// Package semver compares application version strings.
//
// Parse is strict and backs the installer's version-aware overwrite. Lenient
// mirrors the desktop updater, which treats anything unparsable as 0.0.0.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is MAJOR.MINOR.PATCH with an optional pre-release tag.
type Version struct {
	Major, Minor, Patch int
	Pre                 string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Parse accepts an optional leading "v", three numeric components and an optional
// "-pre" or "+build" suffix. Build metadata is dropped.
func Parse(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexByte(raw, '+'); i >= 0 {
		raw = raw[:i]
	}
	var v Version
	if i := strings.IndexByte(raw, '-'); i >= 0 {
		v.Pre = raw[i+1:]
		raw = raw[:i]
		if v.Pre == "" {
			return Version{}, fmt.Errorf("version %q: empty pre-release", s)
		}
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q: want MAJOR.MINOR.PATCH", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version %q: component %q is not a number", s, p)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// Compare returns -1, 0 or 1. A release sorts after any pre-release of the same
// core version; pre-release tags compare lexically.
func Compare(a, b Version) int {
	for _, d := range [][2]int{{a.Major, b.Major}, {a.Minor, b.Minor}, {a.Patch, b.Patch}} {
		if d[0] != d[1] {
			if d[0] < d[1] {
				return -1
			}
			return 1
		}
	}
	switch {
	case a.Pre == b.Pre:
		return 0
	case a.Pre == "":
		return 1
	case b.Pre == "":
		return -1
	case a.Pre < b.Pre:
		return -1
	default:
		return 1
	}
}

// Lenient parses the way the desktop updater does: strip leading "v"s, split on
// dots and read every part as an integer. Any failure yields 0.0.0. The result
// has as many components as the input.
func Lenient(s string) []int {
	parts := strings.Split(strings.TrimSpace(strings.TrimLeft(s, "v")), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return []int{0, 0, 0}
		}
		out[i] = n
	}
	return out
}

// IsNewer reports whether latest is strictly newer than current using Lenient.
// Components compare in order; when one is a prefix of the other the longer one
// is newer, so 1.2.0 is newer than 1.2.
func IsNewer(latest, current string) bool {
	l, c := Lenient(latest), Lenient(current)
	for i := 0; i < len(l) && i < len(c); i++ {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return len(l) > len(c)
}

package version

import (
	"github.com/Masterminds/semver/v3"
)

// IsOlder reports whether recorded is a strictly older semantic version than
// current. Either side failing to parse (e.g. "dev" builds) yields false.
func IsOlder(recorded, current string) bool {
	r, err := semver.NewVersion(recorded)
	if err != nil {
		return false
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	return r.LessThan(c)
}

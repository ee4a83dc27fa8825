// Package timestamp validates and compares the ISO-8601 UTC
// microsecond-precision timestamps used throughout message descriptors
// and permission grants. These strings are fixed-width so that
// byte-lexicographic comparison is
// equivalent to chronological comparison, but only once the format has
// been validated on ingest, which is this package's job.
package timestamp

import (
	"regexp"
	"time"

	"github.com/dwn-project/dwn-core/errs"
)

// Layout is the fixed-width ISO-8601 UTC microsecond layout every
// timestamp in this module must conform to, e.g. "2024-03-05T12:00:00.123456Z".
const Layout = "2006-01-02T15:04:05.000000Z"

var pattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}Z$`)

// Validate reports a *errs.Error (CodeTimestampInvalid) if s is not a
// fixed-width, UTC, microsecond-precision ISO-8601 timestamp.
func Validate(s string) error {
	if !pattern.MatchString(s) {
		return errs.Newf(errs.CodeTimestampInvalid, "timestamp %q is not fixed-width microsecond ISO-8601 UTC", s)
	}

	if _, err := time.Parse(Layout, s); err != nil {
		return errs.Wrap(errs.CodeTimestampInvalid, "timestamp failed to parse", err)
	}

	return nil
}

// Compare returns -1, 0, or 1 as a is before, equal to, or after b,
// using plain string comparison, valid only for strings that have
// already passed Validate.
func Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Now returns the current instant formatted in Layout, for constructing
// grant-active-window checks and similar comparisons against "now".
func Now() string {
	return time.Now().UTC().Format(Layout)
}

package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidTTL is returned for TTL strings outside the <digits><unit> grammar.
var ErrInvalidTTL = errors.New("invalid ttl")

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var ttlUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseTTL parses token lifetimes such as "900s", "15m", "12h" or "7d".
// Zero and anything else is rejected.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q (want <number><s|m|h|d>)", ErrInvalidTTL, s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q must be a positive amount", ErrInvalidTTL, s)
	}
	unit := ttlUnits[m[2]]
	if n > int64(1<<62)/int64(unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidTTL, s)
	}
	return time.Duration(n) * unit, nil
}

package bridge

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Failure tokens the station firmware publishes in place of a numeric value
// when a sensor read fails. Both spellings appear on the wire.
const (
	SentinelAnomaly = "ANOMALIA"
	SentinelNA      = "N/A"
)

// ErrMalformedValue reports a payload that is neither a failure token nor a
// value of the expected shape. The fragment is dropped; session state is
// untouched.
var ErrMalformedValue = errors.New("malformed value")

// IsSentinel reports whether the payload is a sensor failure token.
func IsSentinel(payload string) bool {
	s := strings.TrimSpace(payload)
	return s == SentinelAnomaly || s == SentinelNA
}

// DecodeFloat maps a fragment payload onto an optional float. Failure tokens
// decode to (nil, nil): the sensor reported, the value is absent.
func DecodeFloat(payload string) (*float64, error) {
	s := strings.TrimSpace(payload)
	if s == SentinelAnomaly || s == SentinelNA {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q is not a number", ErrMalformedValue, payload)
	}
	return &v, nil
}

// DecodeInt maps a fragment payload onto an optional integer.
func DecodeInt(payload string) (*int64, error) {
	s := strings.TrimSpace(payload)
	if s == SentinelAnomaly || s == SentinelNA {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrMalformedValue, payload)
	}
	return &v, nil
}

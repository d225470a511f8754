// ABOUTME: Parsing and clamping of untrusted queue indices and timestamps
// ABOUTME: Turns numbers, numeric strings and junk into safe in-bounds values
package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseIndex converts an untrusted index into an int, truncating any
// fractional part toward zero. It accepts Go numeric kinds, json.Number and
// numeric strings; a blank string parses as 0. NaN, infinities and anything
// unparseable report false.
func ParseIndex(raw any) (int, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	switch {
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(f), true
}

// ParseMillis converts an untrusted millisecond timestamp the same way
// ParseIndex converts indices.
func ParseMillis(raw any) (int64, bool) {
	f, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}

// ClampQueueIndex bounds index to [0, queueLength-1], or 0 for an empty queue
func ClampQueueIndex(index, queueLength int) int {
	if queueLength <= 0 || index < 0 {
		return 0
	}
	if index >= queueLength {
		return queueLength - 1
	}
	return index
}

// NormalizeQueueIndex returns a valid index into a queue of queueLength
// entries for any raw input. Invalid input becomes 0.
func NormalizeQueueIndex(raw any, queueLength int) int {
	index, ok := ParseIndex(raw)
	if !ok {
		index = 0
	}
	return ClampQueueIndex(index, queueLength)
}

func parseNumber(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case float32:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		return parseNumericString(string(v))
	case string:
		return parseNumericString(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

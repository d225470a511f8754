// ABOUTME: Tests for queue index normalization
// ABOUTME: Covers coercion of strings, fractions, NaN and out-of-range values
package reconcile

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNormalizeQueueIndex(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		length int
		want   int
	}{
		{"negative clamps to zero", -4, 3, 0},
		{"too large clamps to last", 9, 3, 2},
		{"fraction truncates", 1.8, 3, 1},
		{"numeric string", "2", 4, 2},
		{"NaN", math.NaN(), 4, 0},
		{"nil", nil, 4, 0},
		{"positive infinity", math.Inf(1), 4, 0},
		{"negative infinity", math.Inf(-1), 4, 0},
		{"garbage string", "two", 4, 0},
		{"padded string", " 3 ", 4, 3},
		{"blank string", "", 4, 0},
		{"fractional string", "2.9", 4, 2},
		{"negative fraction", -0.7, 4, 0},
		{"json number", json.Number("1"), 4, 1},
		{"int64", int64(2), 4, 2},
		{"uint8", uint8(200), 4, 3},
		{"float32", float32(2.5), 4, 2},
		{"bool is not a number", true, 4, 0},
		{"huge float", 1e300, 4, 3},
		{"in range", 1, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQueueIndex(tt.raw, tt.length); got != tt.want {
				t.Errorf("NormalizeQueueIndex(%v, %d) = %d, want %d", tt.raw, tt.length, got, tt.want)
			}
		})
	}
}

func TestNormalizeQueueIndexEmptyQueue(t *testing.T) {
	inputs := []any{0, 1, -1, 99, "3", math.NaN(), nil, 2.5}
	for _, raw := range inputs {
		if got := NormalizeQueueIndex(raw, 0); got != 0 {
			t.Errorf("NormalizeQueueIndex(%v, 0) = %d, want 0", raw, got)
		}
		if got := NormalizeQueueIndex(raw, -5); got != 0 {
			t.Errorf("NormalizeQueueIndex(%v, -5) = %d, want 0", raw, got)
		}
	}
}

func TestParseIndex(t *testing.T) {
	if v, ok := ParseIndex("12"); !ok || v != 12 {
		t.Errorf("expected (12, true), got (%d, %v)", v, ok)
	}
	if _, ok := ParseIndex("NaN"); ok {
		t.Error("expected NaN string to be rejected")
	}
	if _, ok := ParseIndex("Infinity"); ok {
		t.Error("expected Infinity string to be rejected")
	}
	if _, ok := ParseIndex(struct{}{}); ok {
		t.Error("expected struct to be rejected")
	}
}

func TestParseMillis(t *testing.T) {
	tests := []struct {
		raw    any
		want   int64
		wantOK bool
	}{
		{float64(1700000000123), 1700000000123, true},
		{"1700000000123", 1700000000123, true},
		{json.Number("1700000000123.9"), 1700000000123, true},
		{nil, 0, false},
		{"soon", 0, false},
		{math.NaN(), 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMillis(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseMillis(%v) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClampQueueIndex(t *testing.T) {
	if got := ClampQueueIndex(5, 5); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := ClampQueueIndex(-1, 5); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := ClampQueueIndex(3, 0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

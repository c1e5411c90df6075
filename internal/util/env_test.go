package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes mixed case", "Yes", false, true},
		{"on with spaces", " on ", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", "off", true, false},
		{"garbage uses default", "maybe", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_BOOL", tt.value)
			}
			if got := ParseBoolEnv("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "40")
	if got := ParseIntEnv("TEST_INT", 7); got != 40 {
		t.Errorf("got %d, want 40", got)
	}
	t.Setenv("TEST_INT", "not a number")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want default 7", got)
	}
	if got := ParseIntEnv("TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("got %d, want default 7", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "45m")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 45*time.Minute {
		t.Errorf("got %v, want 45m", got)
	}
	t.Setenv("TEST_DUR", "soon")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("got %v, want default 1m", got)
	}
}

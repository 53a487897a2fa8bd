// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		envSet       bool
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_STRING",
			defaultValue: "default",
			envValue:     "from-env",
			envSet:       true,
			want:         "from-env",
		},
		{
			name:         "environment variable not set",
			key:          "TEST_STRING_UNSET",
			defaultValue: "default",
			envSet:       false,
			want:         "default",
		},
		{
			name:         "environment variable empty string",
			key:          "TEST_STRING_EMPTY",
			defaultValue: "default",
			envValue:     "",
			envSet:       true,
			want:         "default",
		},
		{
			name:         "sensitive variable (key)",
			key:          "TEST_API_KEY",
			defaultValue: "default",
			envValue:     "secret123",
			envSet:       true,
			want:         "secret123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseString(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		envSet       bool
		want         int
	}{
		{
			name:         "valid integer",
			key:          "TEST_INT",
			defaultValue: 42,
			envValue:     "100",
			envSet:       true,
			want:         100,
		},
		{
			name:         "negative integer",
			key:          "TEST_INT_NEG",
			defaultValue: 42,
			envValue:     "-3",
			envSet:       true,
			want:         -3,
		},
		{
			name:         "invalid integer falls back",
			key:          "TEST_INT_INVALID",
			defaultValue: 42,
			envValue:     "not-a-number",
			envSet:       true,
			want:         42,
		},
		{
			name:         "empty string falls back",
			key:          "TEST_INT_EMPTY",
			defaultValue: 42,
			envValue:     "",
			envSet:       true,
			want:         42,
		},
		{
			name:         "not set",
			key:          "TEST_INT_UNSET",
			defaultValue: 42,
			envSet:       false,
			want:         42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		envSet       bool
		want         bool
	}{
		{name: "true", key: "TEST_BOOL_T", envValue: "true", envSet: true, want: true},
		{name: "TRUE uppercase", key: "TEST_BOOL_TU", envValue: "TRUE", envSet: true, want: true},
		{name: "one", key: "TEST_BOOL_1", envValue: "1", envSet: true, want: true},
		{name: "yes", key: "TEST_BOOL_Y", envValue: "yes", envSet: true, want: true},
		{name: "false", key: "TEST_BOOL_F", defaultValue: true, envValue: "false", envSet: true, want: false},
		{name: "zero", key: "TEST_BOOL_0", defaultValue: true, envValue: "0", envSet: true, want: false},
		{name: "no", key: "TEST_BOOL_N", defaultValue: true, envValue: "no", envSet: true, want: false},
		{name: "invalid falls back", key: "TEST_BOOL_X", defaultValue: true, envValue: "maybe", envSet: true, want: true},
		{name: "empty falls back", key: "TEST_BOOL_E", defaultValue: true, envValue: "", envSet: true, want: true},
		{name: "unset", key: "TEST_BOOL_U", defaultValue: true, envSet: false, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		envSet       bool
		want         time.Duration
	}{
		{
			name:         "valid duration",
			key:          "TEST_DUR",
			defaultValue: time.Minute,
			envValue:     "90s",
			envSet:       true,
			want:         90 * time.Second,
		},
		{
			name:         "compound duration",
			key:          "TEST_DUR_COMPOUND",
			defaultValue: time.Minute,
			envValue:     "1h30m",
			envSet:       true,
			want:         90 * time.Minute,
		},
		{
			name:         "invalid falls back",
			key:          "TEST_DUR_INVALID",
			defaultValue: time.Minute,
			envValue:     "soon",
			envSet:       true,
			want:         time.Minute,
		},
		{
			name:         "bare number falls back",
			key:          "TEST_DUR_BARE",
			defaultValue: time.Minute,
			envValue:     "30",
			envSet:       true,
			want:         time.Minute,
		},
		{
			name:         "unset",
			key:          "TEST_DUR_UNSET",
			defaultValue: time.Minute,
			envSet:       false,
			want:         time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue float64
		envValue     string
		envSet       bool
		want         float64
	}{
		{name: "valid float", key: "TEST_FLOAT", defaultValue: 2.0, envValue: "0.5", envSet: true, want: 0.5},
		{name: "integer literal", key: "TEST_FLOAT_INT", defaultValue: 2.0, envValue: "3", envSet: true, want: 3.0},
		{name: "invalid falls back", key: "TEST_FLOAT_X", defaultValue: 2.0, envValue: "fast", envSet: true, want: 2.0},
		{name: "unset", key: "TEST_FLOAT_U", defaultValue: 2.0, envSet: false, want: 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseFloat(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	def := []string{"free"}

	tests := []struct {
		name     string
		key      string
		envValue string
		envSet   bool
		want     []string
	}{
		{
			name:     "comma separated",
			key:      "TEST_LIST",
			envValue: "all,free",
			envSet:   true,
			want:     []string{"all", "free"},
		},
		{
			name:     "whitespace trimmed",
			key:      "TEST_LIST_WS",
			envValue: " approved , free ",
			envSet:   true,
			want:     []string{"approved", "free"},
		},
		{
			name:     "empty entries dropped",
			key:      "TEST_LIST_EMPTY_ENTRIES",
			envValue: "all,,free,",
			envSet:   true,
			want:     []string{"all", "free"},
		},
		{
			name:     "only separators falls back",
			key:      "TEST_LIST_SEP",
			envValue: ", ,",
			envSet:   true,
			want:     def,
		},
		{
			name:     "empty falls back",
			key:      "TEST_LIST_BLANK",
			envValue: "  ",
			envSet:   true,
			want:     def,
		},
		{
			name:   "unset falls back",
			key:    "TEST_LIST_UNSET",
			envSet: false,
			want:   def,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := ParseList(tt.key, def)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseList() = %v, want %v", got, tt.want)
			}
		})
	}
}

package config

import (
	"strings"
	"time"
)

// Config wraps a decoded YAML/JSON document for typed value extraction.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves key, descending into nested maps at each dot.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}
	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = c.data
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Section returns the nested map under key as its own Config.
func (c Config) Section(key string) Config {
	v, ok := c.lookup(key)
	if !ok {
		return New(nil)
	}
	m, _ := v.(map[string]any)
	return New(m)
}

// String returns the string at key, or defaultVal.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.value(key).(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the bool at key, or defaultVal.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.value(key).(bool); ok {
		return b
	}
	return defaultVal
}

// Duration returns the duration at key, or defaultVal. Strings are parsed
// with time.ParseDuration; bare numbers are seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch v := c.value(key).(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case time.Duration:
		return v
	}
	return defaultVal
}

// Int returns the integer at key, or defaultVal. Floats with a fractional
// part are rejected.
func (c Config) Int(key string, defaultVal int) int {
	if n, ok := asInt(c.value(key)); ok {
		return n
	}
	return defaultVal
}

// Float returns the number at key as float64, or defaultVal.
func (c Config) Float(key string, defaultVal float64) float64 {
	switch v := c.value(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return defaultVal
}

// StringSlice returns the string list at key, or defaultVal if any element
// is not a string.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	switch v := c.value(key).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			out = append(out, s)
		}
		return out
	}
	return defaultVal
}

// IntSlice returns the integer list at key, or defaultVal if any element is
// not an integer.
func (c Config) IntSlice(key string, defaultVal []int) []int {
	switch v := c.value(key).(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			n, ok := asInt(item)
			if !ok {
				return defaultVal
			}
			out = append(out, n)
		}
		return out
	}
	return defaultVal
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}

func (c Config) value(key string) any {
	v, _ := c.lookup(key)
	return v
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

package game

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// IntSetting reads key from the join query. Missing or non-numeric values
// fall back to def; numbers outside [min, max] are clamped.
func IntSetting(s Settings, key string, def, min, max int) int {
	raw := strings.TrimSpace(s.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return clamp(v, min, max)
}

// SecondsSetting is IntSetting for time limits expressed in seconds. When
// allowOff is set an explicit 0 disables the limit.
func SecondsSetting(s Settings, key string, def time.Duration, min, max time.Duration, allowOff bool) time.Duration {
	raw := strings.TrimSpace(s.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v == 0 && allowOff {
		return 0
	}
	d := time.Duration(v) * time.Second
	return time.Duration(clamp(int(d), int(min), int(max)))
}

// EnumSetting returns the value of key if it is one of allowed, else def.
func EnumSetting(s Settings, key string, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(s.Get(key)))
	if slices.Contains(allowed, v) {
		return v
	}
	return def
}

func BoolSetting(s Settings, key string) bool {
	switch strings.ToLower(strings.TrimSpace(s.Get(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

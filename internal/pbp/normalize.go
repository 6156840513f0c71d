// Package pbp reconciles the play-by-play feed for one game into typed,
// idempotently-upserted event rows.
package pbp

import (
	"strconv"
	"strings"
)

// The feed is stringly typed: booleans arrive as "1"/"0", integers as quoted
// strings, and nullable foreign keys as "" or the literal string "null".
// Every conversion here is total; malformed input degrades to a default
// instead of failing the event.

// Flag converts a feed boolean. Anything other than "1" (or numeric 1) is
// false.
func Flag(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "1"
	case float64:
		return t == 1
	case int:
		return t == 1
	case bool:
		return t
	}
	return false
}

// Int converts a feed integer, defaulting to 0.
func Int(v any) int {
	n, _ := intValue(v)
	return n
}

// IntOr converts a feed integer with an explicit default.
func IntOr(v any, def int) int {
	n, ok := intValue(v)
	if !ok {
		return def
	}
	return n
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return int(t), true
	case int:
		return t, true
	}
	return 0, false
}

// Float converts a feed decimal, defaulting to 0.
func Float(v any) float64 {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}

// Str converts a feed string, defaulting to "".
func Str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// OptID converts a nullable foreign key. The feed marks absence with "",
// the literal string "null", or a JSON null; all of those (and anything
// unparseable) become true absence rather than a stored marker value.
func OptID(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || s == "null" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return &n
	}
	n, ok := intValue(v)
	if !ok {
		return nil
	}
	return &n
}

// OptIDNonZero is OptID with the additional rule that 0 means absence. The
// penalty feed uses player_id 0 for bench penalties.
func OptIDNonZero(v any) *int {
	id := OptID(v)
	if id != nil && *id == 0 {
		return nil
	}
	return id
}

// ClockSeconds converts a clock string ("MM:SS" or "HH:MM:SS") to total
// seconds, defaulting to 0.
func ClockSeconds(clock string) int {
	if clock == "" {
		return 0
	}
	parts := strings.Split(clock, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		nums[i] = n
	}
	switch len(nums) {
	case 2:
		return nums[0]*60 + nums[1]
	case 3:
		return nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return 0
}

// PeriodNumber normalizes the feed's period identifier, which may be a bare
// number, an alias (OT1, OT2, OT3, SO), or an object with an "id" field.
func PeriodNumber(v any) int {
	if obj, ok := v.(map[string]any); ok {
		v = obj["id"]
	}

	switch Str(v) {
	case "OT1":
		return 4
	case "OT2":
		return 5
	case "OT3":
		return 6
	case "SO":
		return 7
	}
	return IntOr(v, 1)
}

package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args is the named-argument bag of one query. Values arrive as decoded JSON
// (strings, float64 numbers) or as strings from URLs and the command line.
type Args map[string]any

// String returns the named argument as a string, or def when absent or empty.
func (a Args) String(name, def string) string {
	switch v := a[name].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	case float64, int, int64:
		return fmt.Sprint(v)
	}
	return def
}

// Int returns the named argument as an int, or def when absent or not numeric.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return def
		}
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// ParseArgs builds Args from key=value pairs.
func ParseArgs(pairs []string) (Args, error) {
	args := Args{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", p)
		}
		args[k] = v
	}
	return args, nil
}

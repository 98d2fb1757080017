package tools

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nextlevelbuilder/gomemory/internal/store"
)

// Argument decoding for JSON-RPC tool calls: numbers arrive as float64,
// arrays as []any and objects as map[string]any.

func argError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, a...))
}

func stringArg(args map[string]any, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, argError("%s must be a string", key)
	}
	return s, true, nil
}

func requiredString(args map[string]any, key string) (string, error) {
	s, ok, err := stringArg(args, key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", argError("%s is required", key)
	}
	return s, nil
}

func numberArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	default:
		return 0, false, argError("%s must be a number", key)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false, argError("%s must be finite", key)
	}
	return n, true, nil
}

func intArg(args map[string]any, key string) (int, bool, error) {
	n, ok, err := numberArg(args, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if n != math.Trunc(n) {
		return 0, false, argError("%s must be an integer", key)
	}
	return int(n), true, nil
}

func boolArg(args map[string]any, key string) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, argError("%s must be a boolean", key)
	}
	return b, nil
}

func stringsArg(args map[string]any, key string) ([]string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, true, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, false, argError("%s[%d] must be a string", key, i)
			}
			out = append(out, s)
		}
		return out, true, nil
	}
	return nil, false, argError("%s must be an array of strings", key)
}

func metadataArg(args map[string]any, key string) (store.Metadata, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false, argError("%s must be an object", key)
	}
	md, err := store.MetadataOf(m)
	if err != nil {
		return nil, false, argError("%s: %v", key, err)
	}
	return md, true, nil
}

func typeArg(args map[string]any, key string) (store.RecordType, error) {
	s, ok, err := stringArg(args, key)
	if err != nil || !ok || s == "" {
		return "", err
	}
	t, ok := store.ParseRecordType(s)
	if !ok {
		return "", argError("%s must be one of GLOBAL, CONVERSATION, TEMPORARY", key)
	}
	return t, nil
}

// timeArg accepts RFC 3339 timestamps and plain dates (YYYY-MM-DD, UTC).
// With endOfDay a plain date covers the whole day.
func timeArg(args map[string]any, key string, endOfDay bool) (time.Time, error) {
	s, ok, err := stringArg(args, key)
	if err != nil || !ok || s == "" {
		return time.Time{}, err
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, argError("%s must be RFC 3339 or YYYY-MM-DD", key)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}

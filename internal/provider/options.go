package provider

import (
	"fmt"
	"sort"
)

// Rule reports whether a value is acceptable for one option key.
type Rule func(value any) bool

// Rules is an adapter's allow-list of option keys. Keys absent from the
// map are unknown and get stripped; keys present are validated with their
// predicate.
type Rules map[string]Rule

// Clean returns a copy of options with unknown keys silently removed.
// A known key whose value fails its predicate rejects the whole request.
func (r Rules) Clean(options map[string]any) (map[string]any, error) {
	if len(options) == 0 {
		return map[string]any{}, nil
	}

	cleaned := make(map[string]any, len(options))

	// Iterate in sorted key order so the first reported violation is
	// deterministic.
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rule, known := r[key]
		if !known {
			continue
		}
		value := options[key]
		if !rule(value) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOption, key)
		}
		cleaned[key] = value
	}

	return cleaned, nil
}

// Supports reports whether every known key in options passes its predicate.
func (r Rules) Supports(options map[string]any) bool {
	_, err := r.Clean(options)
	return err == nil
}

// OneOf accepts a string value from a fixed set.
func OneOf(values ...string) Rule {
	return func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}

// NonEmptyString accepts any non-empty string.
func NonEmptyString() Rule {
	return func(value any) bool {
		s, ok := value.(string)
		return ok && s != ""
	}
}

// NumberBetween accepts a numeric value in [min, max]. JSON decoding
// produces float64 but options built in-process may carry int values.
func NumberBetween(min, max float64) Rule {
	return func(value any) bool {
		f, ok := asFloat(value)
		return ok && f >= min && f <= max
	}
}

// Boolean accepts a bool value.
func Boolean() Rule {
	return func(value any) bool {
		_, ok := value.(bool)
		return ok
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// preferenceRules are the user preference flags every adapter accepts in
// addition to its own knobs. They steer fallback scoring, not generation.
var preferenceRules = Rules{
	"prefer_quality": Boolean(),
	"prefer_speed":   Boolean(),
	"prefer_cheap":   Boolean(),
	"prefer_open":    Boolean(),
}

// withPreferenceRules merges the shared preference flags into an adapter's
// own allow-list.
func withPreferenceRules(rules Rules) Rules {
	merged := make(Rules, len(rules)+len(preferenceRules))
	for key, rule := range preferenceRules {
		merged[key] = rule
	}
	for key, rule := range rules {
		merged[key] = rule
	}
	return merged
}

// stringOption reads a string-valued option with a default.
func stringOption(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// floatOption reads a numeric option with a default.
func floatOption(options map[string]any, key string, fallback float64) float64 {
	if v, ok := asFloat(options[key]); ok {
		return v
	}
	return fallback
}

// boolOption reads a boolean option with a default.
func boolOption(options map[string]any, key string, fallback bool) bool {
	if v, ok := options[key].(bool); ok {
		return v
	}
	return fallback
}

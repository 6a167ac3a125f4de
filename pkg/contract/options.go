package contract

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// decodeOptions decodes a configuration map into a condition or term
// options struct. Scalars are promoted to single-element slices so
// contract files can write `include: stg_.*` instead of a list, and
// unknown keys are rejected so typos surface as configuration errors.
func decodeOptions(options map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if options == nil {
		options = map[string]any{}
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// stringify renders a configured or declared meta value for comparison.
func stringify(v any) string {
	return fmt.Sprint(v)
}

// stringValues normalizes a decoded meta-values mapping: every value
// becomes a slice of strings, scalars becoming single-element slices.
func stringValues(values map[string]any) map[string][]string {
	normalized := make(map[string][]string, len(values))
	for key, val := range values {
		switch v := val.(type) {
		case []any:
			strs := make([]string, 0, len(v))
			for _, item := range v {
				strs = append(strs, fmt.Sprint(item))
			}
			normalized[key] = strs
		case []string:
			normalized[key] = v
		default:
			normalized[key] = []string{fmt.Sprint(v)}
		}
	}
	return normalized
}

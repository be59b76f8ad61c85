package deployment

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/stackpulse/stackpulse/internal/interfaces"
)

// ServicePatch holds the optional fields merged into a ServiceState on update
type ServicePatch struct {
	URL             *string              `json:"url"`
	BuildTimeMillis *int64               `json:"build_time_ms"`
	Platform        *interfaces.Platform `json:"platform"`
}

// IsEmpty reports whether the patch carries no fields
func (p ServicePatch) IsEmpty() bool {
	return p.URL == nil && p.BuildTimeMillis == nil && p.Platform == nil
}

func (p ServicePatch) applyTo(state *interfaces.ServiceState) {
	if p.URL != nil {
		state.URL = *p.URL
	}
	if p.BuildTimeMillis != nil {
		v := *p.BuildTimeMillis
		state.BuildTimeMillis = &v
	}
	if p.Platform != nil {
		state.Platform = *p.Platform
	}
}

// DecodeServicePatch converts loosely typed extra fields into a ServicePatch.
// Unknown keys are rejected. Both snake_case and camelCase keys are accepted.
func DecodeServicePatch(extra map[string]interface{}) (ServicePatch, error) {
	var patch ServicePatch
	if len(extra) == 0 {
		return patch, nil
	}

	normalized := make(map[string]interface{}, len(extra))
	for k, v := range extra {
		normalized[normalizeKey(k)] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(floatToMillisHook(), trimStringHook()),
		TagName:          "json",
	})
	if err != nil {
		return patch, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return patch, fmt.Errorf("%w: %v", ErrInvalidServiceFields, err)
	}
	if patch.BuildTimeMillis != nil && *patch.BuildTimeMillis < 0 {
		return patch, fmt.Errorf("%w: build_time_ms must not be negative", ErrInvalidServiceFields)
	}
	return patch, nil
}

func normalizeKey(k string) string {
	switch strings.ToLower(strings.ReplaceAll(k, "_", "")) {
	case "url":
		return "url"
	case "buildtimems", "buildtimemillis", "buildtime":
		return "build_time_ms"
	case "platform", "provider":
		return "platform"
	}
	return k
}

// floatToMillisHook truncates JSON numbers into integer milliseconds
func floatToMillisHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t.Kind() != reflect.Int64 {
			return data, nil
		}
		switch f.Kind() {
		case reflect.Float64:
			v, _ := data.(float64)
			return int64(v), nil
		case reflect.String:
			s, _ := data.(string)
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid duration in milliseconds: %q", s)
			}
			return int64(v), nil
		default:
			return data, nil
		}
	}
}

func trimStringHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.String {
			return data, nil
		}
		s, _ := data.(string)
		return strings.TrimSpace(s), nil
	}
}

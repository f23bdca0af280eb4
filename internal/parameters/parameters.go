// Package parameters handles generic configuration Params, a map[string]string that the
// user can set with a "key=value,key=value" string (usually the -set flag).
//
// The trainer configuration and the GoMLX model hyperparameters are both overridden from Params.
package parameters

import (
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/segan/internal/generics"
	"github.com/pkg/errors"
	"slices"
	"strconv"
	"strings"
)

// Params represent generic configuration parameters.
type Params map[string]string

// NewFromConfigString create params from user's configuration string.
// See GetParamOr and PopParamOr to parse values from this map.
//
// An empty config string returns an empty (but non-nil) Params.
func NewFromConfigString(config string) Params {
	params := make(Params)
	config = strings.TrimSpace(config)
	if config == "" {
		return params
	}
	parts := strings.Split(config, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		subParts := strings.SplitN(part, "=", 2) // Split into up to 2 parts to handle '=' in values
		if len(subParts) == 1 {
			params[subParts[0]] = ""
		} else {
			params[subParts[0]] = subParts[1]
		}
	}
	return params
}

// Keys returns the sorted keys still present in params.
// Typically used after all known parameters were popped, to report the unknown ones.
func Keys(params Params) []string {
	return slices.Collect(generics.SortedKeys(params))
}

// Value is the set of types a parameter can be parsed to.
type Value interface {
	bool | int | int64 | float32 | float64 | string
}

// PopParamOr is like GetParamOr, but it also deletes from the params map the retrieved parameter.
func PopParamOr[T Value](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key is present, or returns the defaultValue
// if not.
//
// For bool types, a key without a value is interpreted as true.
func GetParamOr[T Value](params Params, key string, defaultValue T) (T, error) {
	vAny := (any)(defaultValue)
	var t T
	toT := func(v any) T { return v.(T) }
	switch vAny.(type) {
	case string:
		if value, exists := params[key]; exists {
			return toT(value), nil
		}
	case int:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.Atoi(value)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int", key, value)
			}
			return toT(parsedValue), nil
		}
	case int64:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to int64", key, value)
			}
			return toT(parsedValue), nil
		}
	case float32:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(float32(parsedValue)), nil
		}
	case float64:
		if value, exists := params[key]; exists && value != "" {
			parsedValue, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return t, errors.Wrapf(err, "failed to parse configuration %s=%q to float", key, value)
			}
			return toT(parsedValue), nil
		}
	case bool:
		if value, exists := params[key]; exists {
			if value == "" || strings.ToLower(value) == "true" || value == "1" { // Empty value is considered "true"
				return toT(true), nil
			}
			if strings.ToLower(value) == "false" || value == "0" {
				return toT(false), nil
			}
			return defaultValue, errors.Errorf("failed to parse configuration %s=%q to bool", key, value)
		}
	}
	return defaultValue, nil
}

// ToContext pops from params every hyperparameter defined in the root scope of ctx, and sets them
// in the context, parsed to the type of their current (default) value.
//
// Parameters not known by the context are left in params.
func ToContext(params Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil || scope != context.RootScope {
			return
		}
		if _, found := params[key]; !found {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			err = popToContext(params, ctx, key, defaultValue)
		case int:
			err = popToContext(params, ctx, key, defaultValue)
		case int64:
			err = popToContext(params, ctx, key, defaultValue)
		case float64:
			err = popToContext(params, ctx, key, defaultValue)
		case float32:
			err = popToContext(params, ctx, key, defaultValue)
		case bool:
			err = popToContext(params, ctx, key, defaultValue)
		default:
			err = errors.Errorf("hyperparameter %q is of unknown type %T", key, defaultValue)
		}
	})
	return err
}

// popToContext parses params[key] to the type of defaultValue and sets it in the root scope of ctx.
func popToContext[T Value](params Params, ctx *context.Context, key string, defaultValue T) error {
	value, err := PopParamOr(params, key, defaultValue)
	if err != nil {
		return errors.WithMessagef(err, "parsing %q (%T) hyperparameter", key, defaultValue)
	}
	ctx.SetParam(key, value)
	return nil
}

package store

import (
	"context"

	"github.com/spf13/cast"
)

// Settings are persisted as plain strings; these helpers parse them into
// the concrete type a caller expects, falling back to a supplied default
// when the key is absent or the stored value doesn't parse.

// GetSettingInt reads key as an int, returning def if unset or unparsable.
func GetSettingInt(ctx context.Context, st Store, key string, def int) int {
	v, ok, err := st.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// GetSettingBool reads key as a bool, returning def if unset or unparsable.
func GetSettingBool(ctx context.Context, st Store, key string, def bool) bool {
	v, ok, err := st.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// GetSettingFloat reads key as a float64, returning def if unset or unparsable.
func GetSettingFloat(ctx context.Context, st Store, key string, def float64) float64 {
	v, ok, err := st.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

// PutSettingValue stringifies an arbitrary typed value and persists it.
func PutSettingValue(ctx context.Context, st Store, key string, value any) error {
	return st.PutSetting(ctx, key, cast.ToString(value))
}

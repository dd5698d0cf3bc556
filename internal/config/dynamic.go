package config

import "strconv"

// DynamicSettings holds the subset of configuration that can be changed
// at runtime by a client, without a process restart. It is rebuilt on
// every settings write by merging DefaultDynamicSettings() under the
// raw key/value rows persisted in the database settings table (see
// internal/dbstore). A row whose value is the literal string "null"
// reverts that key to its default on the next rebuild rather than
// persisting the literal value.
type DynamicSettings struct {
	LexicalWeight float64
	DenseWeight   float64
	RRFConstant   int
	MaxResults    int
	UseHNSW       bool
}

// DefaultDynamicSettings returns the built-in defaults for every
// dynamic setting key, used both as the base layer for MergeDynamicSettings
// and as what a "null" override value reverts a key to.
func DefaultDynamicSettings() DynamicSettings {
	return DynamicSettings{
		LexicalWeight: 0.5,
		DenseWeight:   0.5,
		RRFConstant:   60,
		MaxResults:    20,
		UseHNSW:       false,
	}
}

// dynamicSettingNull is the sentinel value a settings-table row holds to
// mean "revert this key to its default" rather than "set it to this
// literal string".
const dynamicSettingNull = "null"

// MergeDynamicSettings builds a DynamicSettings by layering raw string
// key/value pairs (as read from the database settings table) over the
// defaults. Unrecognized keys are ignored; malformed values for a known
// key are ignored and that key falls back to its default, since a
// corrupt settings row should never prevent the server from starting.
func MergeDynamicSettings(raw map[string]string) DynamicSettings {
	s := DefaultDynamicSettings()

	if v, ok := raw["search.lexical_weight"]; ok && v != dynamicSettingNull {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.LexicalWeight = f
		}
	}
	if v, ok := raw["search.dense_weight"]; ok && v != dynamicSettingNull {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.DenseWeight = f
		}
	}
	if v, ok := raw["search.rrf_constant"]; ok && v != dynamicSettingNull {
		if n, err := strconv.Atoi(v); err == nil {
			s.RRFConstant = n
		}
	}
	if v, ok := raw["search.max_results"]; ok && v != dynamicSettingNull {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxResults = n
		}
	}
	if v, ok := raw["search.use_hnsw"]; ok && v != dynamicSettingNull {
		if b, err := strconv.ParseBool(v); err == nil {
			s.UseHNSW = b
		}
	}

	return s
}

// KnownDynamicSettingKeys lists the settings-table keys MergeDynamicSettings
// understands, used by the settings-write tool to validate a key before
// persisting it.
func KnownDynamicSettingKeys() []string {
	return []string{
		"search.lexical_weight",
		"search.dense_weight",
		"search.rrf_constant",
		"search.max_results",
		"search.use_hnsw",
	}
}

// IsKnownDynamicSettingKey reports whether key is understood by
// MergeDynamicSettings.
func IsKnownDynamicSettingKey(key string) bool {
	for _, k := range KnownDynamicSettingKeys() {
		if k == key {
			return true
		}
	}
	return false
}

package ingress

import "strings"

// Formatter transforms a verified, decrypted envelope into the shape
// per-kind decoding expects. Per spec.md §9's re-architecture note this
// is a builder-time registry (map populated before worker start), not a
// runtime plugin loader.
type Formatter func(envelope map[string]interface{}) map[string]interface{}

// FormatterRegistry maps a lower-cased EE_FORMATTER name to its
// Formatter. The zero value is not usable; use NewFormatterRegistry.
type FormatterRegistry struct {
	formatters map[string]Formatter
}

// DefaultFormatterName is used when EE_FORMATTER is absent.
const DefaultFormatterName = "raw"

// NewFormatterRegistry creates a registry pre-populated with the "raw"
// and "identity" formatters, plus any custom formatters supplied at
// construction (from the `customFormatters` configuration option).
func NewFormatterRegistry(custom map[string]Formatter) *FormatterRegistry {
	r := &FormatterRegistry{formatters: map[string]Formatter{
		"raw":      rawFormatter,
		"identity": identityFormatter,
	}}
	for name, fn := range custom {
		r.formatters[strings.ToLower(name)] = fn
	}
	return r
}

// Lookup resolves name (lower-cased, defaulting to "raw" when empty) to
// a Formatter. The second return value is false for an unknown
// formatter name, which callers must treat as "drop with a warning".
func (r *FormatterRegistry) Lookup(name string) (Formatter, bool) {
	if name == "" {
		name = DefaultFormatterName
	}
	fn, ok := r.formatters[strings.ToLower(name)]
	return fn, ok
}

// rawFormatter copies every envelope key to the top level and nests
// everything else under DATA, per spec.md §4.5 step 7 / §8 scenario S4.
func rawFormatter(envelope map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(envelope))
	data := make(map[string]interface{})

	for k, v := range envelope {
		out[k] = v
		if !strings.HasPrefix(k, "EE_") {
			data[k] = v
		}
	}
	out["DATA"] = data
	return out
}

// identityFormatter is the no-op formatter.
func identityFormatter(envelope map[string]interface{}) map[string]interface{} {
	return envelope
}

package audit

import "strings"

// DefaultRedactKeys are the parameter names whose values never appear
// verbatim in audit records, logs, or events.
var DefaultRedactKeys = []string{
	"payload", "body", "content", "attachments", "message",
	"subject", "description", "notes", "html", "text",
}

// Redactor replaces sensitive parameter values with type-tag placeholders.
// Matching is case-insensitive and applies at every nesting depth.
type Redactor struct {
	keys map[string]struct{}
}

// NewRedactor builds a redactor for the given key names. With no keys it
// uses DefaultRedactKeys.
func NewRedactor(keys ...string) *Redactor {
	if len(keys) == 0 {
		keys = DefaultRedactKeys
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return &Redactor{keys: set}
}

// Sensitive reports whether values under key must be redacted.
func (r *Redactor) Sensitive(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

// Redact returns a deep copy of data with every sensitive value replaced
// by a placeholder naming its type. The input is never modified.
func (r *Redactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		if r.Sensitive(k) {
			out[k] = placeholder(v)
			continue
		}
		out[k] = r.redactValue(v)
	}
	return out
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return r.Redact(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.redactValue(item)
		}
		return out
	default:
		return v
	}
}

func placeholder(v any) string {
	switch v.(type) {
	case string:
		return "[string omitted]"
	case map[string]any:
		return "[map omitted]"
	case []any:
		return "[list omitted]"
	default:
		return "[value omitted]"
	}
}

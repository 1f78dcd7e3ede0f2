package audit_test

import (
	"reflect"
	"testing"

	"github.com/batonhq/baton/audit"
)

func TestRedactDefaultKeys(t *testing.T) {
	r := audit.NewRedactor()
	got := r.Redact(map[string]any{
		"payload": "secret document text",
		"body":    map[string]any{"html": "<p>hi</p>"},
		"to":      "ada@example.com",
	})

	if got["payload"] != "[string omitted]" {
		t.Errorf("payload = %v, want string placeholder", got["payload"])
	}
	if got["body"] != "[map omitted]" {
		t.Errorf("body = %v, want map placeholder", got["body"])
	}
	if got["to"] != "ada@example.com" {
		t.Errorf("to = %v, non-sensitive value must survive", got["to"])
	}
}

func TestRedactTypeTags(t *testing.T) {
	r := audit.NewRedactor("payload")
	cases := []struct {
		value any
		want  string
	}{
		{"text", "[string omitted]"},
		{map[string]any{"k": 1}, "[map omitted]"},
		{[]any{1, 2}, "[list omitted]"},
		{42, "[value omitted]"},
	}
	for _, tc := range cases {
		got := r.Redact(map[string]any{"payload": tc.value})
		if got["payload"] != tc.want {
			t.Errorf("Redact(%T) = %v, want %q", tc.value, got["payload"], tc.want)
		}
	}
}

func TestRedactWalksNestedStructures(t *testing.T) {
	r := audit.NewRedactor()
	got := r.Redact(map[string]any{
		"request": map[string]any{
			"attachments": []any{"a.pdf"},
			"folder":      "reports",
		},
		"items": []any{
			map[string]any{"content": "secret", "name": "x"},
		},
	})

	request := got["request"].(map[string]any)
	if request["attachments"] != "[list omitted]" {
		t.Errorf("nested attachments = %v", request["attachments"])
	}
	if request["folder"] != "reports" {
		t.Errorf("nested folder = %v", request["folder"])
	}
	item := got["items"].([]any)[0].(map[string]any)
	if item["content"] != "[string omitted]" {
		t.Errorf("content inside list = %v", item["content"])
	}
	if item["name"] != "x" {
		t.Errorf("name inside list = %v", item["name"])
	}
}

func TestRedactCaseInsensitive(t *testing.T) {
	r := audit.NewRedactor()
	got := r.Redact(map[string]any{"Subject": "quarterly numbers"})
	if got["Subject"] != "[string omitted]" {
		t.Errorf("Subject = %v, want redacted regardless of case", got["Subject"])
	}
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"payload": "secret",
		"nested":  map[string]any{"body": "secret too"},
	}
	want := map[string]any{
		"payload": "secret",
		"nested":  map[string]any{"body": "secret too"},
	}

	audit.NewRedactor().Redact(in)

	if !reflect.DeepEqual(in, want) {
		t.Errorf("input mutated: %#v", in)
	}
}

func TestRedactCustomKeys(t *testing.T) {
	r := audit.NewRedactor("api_key")
	got := r.Redact(map[string]any{
		"api_key": "sk-123",
		"payload": "not sensitive under custom keys",
	})
	if got["api_key"] != "[string omitted]" {
		t.Errorf("api_key = %v", got["api_key"])
	}
	if got["payload"] != "not sensitive under custom keys" {
		t.Errorf("payload = %v, custom key set replaces the default", got["payload"])
	}
}

func TestRedactNil(t *testing.T) {
	if got := audit.NewRedactor().Redact(nil); got != nil {
		t.Errorf("Redact(nil) = %#v, want nil", got)
	}
}

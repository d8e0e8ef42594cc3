package contacts

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errUnrecognizedShape = errors.New("unrecognized response shape")

// listWrapperKeys are the envelope keys portal versions have wrapped
// entity arrays in, probed in order and recursively (one level of
// {"result": {"items": [...]}} nesting occurs in the wild).
var listWrapperKeys = []string{"result", "items", "contacts", "data"}

func unwrapList(raw []byte) ([]any, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	return digList(top, 0)
}

func digList(v any, depth int) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if depth >= 3 {
			return nil, errUnrecognizedShape
		}
		for _, key := range listWrapperKeys {
			inner, ok := t[key]
			if !ok {
				continue
			}
			if list, err := digList(inner, depth+1); err == nil {
				return list, nil
			}
		}
	}
	return nil, errUnrecognizedShape
}

func normalizeSingle(raw []byte) (Contact, bool) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return Contact{}, false
	}
	if contact, ok := normalizeContact(top); ok {
		return contact, true
	}
	m, ok := top.(map[string]any)
	if !ok {
		return Contact{}, false
	}
	for _, key := range listWrapperKeys {
		if inner, present := m[key]; present {
			if contact, ok := normalizeContact(inner); ok {
				return contact, true
			}
		}
	}
	return Contact{}, false
}

// normalizeContact probes the casing variants seen across portal
// deployments: SCREAMING keys from the classic REST surface, PascalCase
// from the newer one, lowercase from the mobile proxy. Multi-value
// fields arrive as plain strings, arrays of strings, or arrays of
// {VALUE: ...} objects.
func normalizeContact(v any) (Contact, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Contact{}, false
	}

	contact := Contact{
		ID:    intField(m, "ID", "Id", "id"),
		Name:  strings.TrimSpace(stringField(m, "NAME", "Name", "name", "FULL_NAME", "FullName", "title")),
		Email: multiValueField(m, "EMAIL", "Email", "email"),
		Phone: multiValueField(m, "PHONE", "Phone", "phone"),
	}
	if contact.ID == 0 {
		return Contact{}, false
	}
	if contact.Name == "" {
		first := stringField(m, "FIRST_NAME", "FirstName", "first_name")
		last := stringField(m, "LAST_NAME", "LastName", "last_name")
		contact.Name = strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	}
	return contact, true
}

func intField(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch t := m[key].(type) {
		case float64:
			return int64(t)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func multiValueField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch t := m[key].(type) {
		case string:
			if t != "" {
				return t
			}
		case []any:
			for _, item := range t {
				switch entry := item.(type) {
				case string:
					if entry != "" {
						return entry
					}
				case map[string]any:
					if s := stringField(entry, "VALUE", "Value", "value"); s != "" {
						return s
					}
				}
			}
		}
	}
	return ""
}

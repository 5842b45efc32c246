package common

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractObject returns the first complete JSON object of an LLM response, dropping
// markdown fences, a leading sentence or trailing prose.
func ExtractObject(response string) (string, error) {
	start := strings.IndexByte(response, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response (missing '{')")
	}

	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(response[start:])).Decode(&raw); err == nil {
		return string(raw), nil
	}

	// Not decodable from the first brace; hand back the widest candidate so the
	// caller can report it.
	end := strings.LastIndexByte(response, '}')
	if end < start {
		return "", fmt.Errorf("no JSON object found in response (missing '}')")
	}
	return response[start : end+1], nil
}

// PluckArray returns the raw JSON array stored under key in the object found in
// response. A missing key, or a value that is not an array, yields "[]". An error is
// returned only when response holds no valid JSON object at all.
func PluckArray(response, key string) (string, error) {
	jsonStr, err := ExtractObject(response)
	if err != nil {
		return "", err
	}
	if !gjson.Valid(jsonStr) {
		return "", fmt.Errorf("invalid JSON in response: %.200s", jsonStr)
	}

	value := gjson.Get(jsonStr, key)
	if !value.IsArray() {
		return "[]", nil
	}
	return value.Raw, nil
}

// DecodeArray plucks key from response and decodes it into a slice of T. Elements
// that do not match T are skipped.
func DecodeArray[T any](response, key string) ([]T, error) {
	raw, err := PluckArray(response, key)
	if err != nil {
		return nil, err
	}

	items := []T{}
	for _, el := range gjson.Parse(raw).Array() {
		var item T
		if err := json.Unmarshal([]byte(el.Raw), &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Truncate returns at most limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// Package jsonutil converts decoded JSON values into the text forms stored in the database.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Compact encodes v without HTML escaping or a trailing newline.
// Map keys are sorted by encoding/json.
func Compact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Text renders a decoded JSON value as stored text. Strings are returned unquoted,
// numbers keep their original text when decoded as json.Number, and objects and
// arrays are compact-encoded.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s, err := Compact(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return s
	}
}

// TextOr is Text, or fallback when v is nil.
func TextOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	return Text(v)
}

// IsTruthyScalar reports whether v is a non-empty string, a non-zero number or true.
// Objects and arrays are never truthy scalars.
func IsTruthyScalar(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	}
	return false
}

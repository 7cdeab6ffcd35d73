// Package common has helpers shared by the LLM-backed components.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a model response contains no JSON value.
var ErrNoJSON = errors.New("no JSON value found in response")

// ExtractJSON returns the outermost JSON object or array embedded in a model
// response, dropping markdown fences and any prose around it.
func ExtractJSON(response string) (string, error) {
	s := strings.TrimSpace(response)
	if i := strings.Index(s, "```"); i >= 0 {
		body := s[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		s = strings.TrimSpace(body)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", fmt.Errorf("%w: unterminated %q", ErrNoJSON, s[start])
	}
	return s[start : end+1], nil
}

// ParseJSON extracts and unmarshals the JSON value of a model response into T.
func ParseJSON[T any](response string) (T, error) {
	var zero T
	raw, err := ExtractJSON(response)
	if err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, raw)
	}
	return result, nil
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Assessment is a provider's verdict on one page
type Assessment struct {
	Rating int    `json:"rating"`
	Reason string `json:"reason"`
}

// parseAssessment extracts and parses a JSON object from a response that may
// contain surrounding text
func parseAssessment(response string) (*Assessment, error) {
	var a Assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &a); err != nil {
		obj, err := extractObject(response)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(obj), &a); err != nil {
			return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
		}
	}
	if a.Rating < 1 || a.Rating > 5 {
		return nil, fmt.Errorf("rating %d outside 1-5", a.Rating)
	}
	return &a, nil
}

// extractObject returns the first balanced {...} in s. Braces inside JSON
// strings are ignored.
func extractObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no matching closing brace found")
}

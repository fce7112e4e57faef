package transcript

import (
	"encoding/json"
	"regexp"
	"strings"
)

// secretFields are JSON members whose string values never reach a
// transcript, whatever the value is.
var secretFields = map[string]bool{
	"license_key": true,
	"password":    true,
	"token":       true,
}

var (
	reString       = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	reStringMember = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"(\s*:\s*)"(?:[^"\\]|\\.)*"`)
)

// redactValues replaces whole JSON string literals whose value is one of
// secrets. Substrings of longer strings and numbers are left alone.
func redactValues(body string, secrets []string) string {
	if len(secrets) == 0 {
		return body
	}
	return reString.ReplaceAllStringFunc(body, func(m string) string {
		var value string
		if err := json.Unmarshal([]byte(m), &value); err != nil {
			return m
		}
		for _, s := range secrets {
			if value == s {
				return `"` + Redacted + `"`
			}
		}
		return m
	})
}

// redactFields replaces the values of secretFields members with Redacted.
func redactFields(body string) string {
	return reStringMember.ReplaceAllStringFunc(body, func(m string) string {
		parts := reStringMember.FindStringSubmatch(m)
		if !secretFields[strings.ToLower(parts[1])] {
			return m
		}
		return `"` + parts[1] + `"` + parts[2] + `"` + Redacted + `"`
	})
}

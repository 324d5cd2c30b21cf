package validation

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxSourceLen     = 1024
	maxParamValueLen = 256
	maxParams        = 16
)

var (
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// Integration names as registered by the worker, e.g. "file" or "stig_viewer"
	integrationRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

	paramKeyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.]{0,63}$`)
)

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

func IsValidIntegrationName(name string) bool {
	return integrationRegex.MatchString(name)
}

func IsValidParamKey(key string) bool {
	return paramKeyRegex.MatchString(key)
}

// ValidateSource checks the integration source (a path, URL or scanner
// reference). Only length and control characters are checked here; the
// integration itself decides whether the source can be opened.
func ValidateSource(source string) (bool, string) {
	if strings.TrimSpace(source) == "" {
		return false, "Source is required"
	}
	if len(source) > maxSourceLen {
		return false, "Source is too long"
	}
	if SanitizeString(source) != source || strings.ContainsAny(source, "\n\r\t") {
		return false, "Source contains control characters"
	}
	return true, ""
}

// ValidateParams checks integration parameters such as the asset filter.
func ValidateParams(params map[string]string) map[string]string {
	errors := make(map[string]string)

	if len(params) > maxParams {
		errors["params"] = "Too many parameters"
		return errors
	}
	for key, value := range params {
		if !IsValidParamKey(key) {
			errors["params."+TruncateString(SanitizeString(key), 64)] = "Invalid parameter name"
			continue
		}
		if len(value) > maxParamValueLen {
			errors["params."+key] = "Parameter value is too long"
		} else if SanitizeString(value) != value {
			errors["params."+key] = "Parameter value contains control characters"
		}
	}
	return errors
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates a string to maxLen bytes
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer masks sensitive parameter values before they reach a log.
// A value is sensitive when its parameter is named after a sensitive field,
// or when the statement it is bound to mentions one.
type Sanitizer struct {
	sensitiveFields []string
	maskValue       string
	patterns        []*regexp.Regexp
}

// DefaultSensitiveFields is used when NewSanitizer gets no fields.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer creates a sanitizer for the given field names, or for
// DefaultSensitiveFields when none are given.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}

	return &Sanitizer{
		sensitiveFields: sensitiveFields,
		maskValue:       "***REDACTED***",
		patterns:        patterns,
	}
}

// Fields returns the sensitive field names.
func (s *Sanitizer) Fields() []string {
	return append([]string(nil), s.sensitiveFields...)
}

// MaskParams masks every parameter of a statement mentioning a sensitive
// field. Positional parameters cannot be attributed to columns, so all of
// them are masked. The original slice is not modified.
func (s *Sanitizer) MaskParams(sql string, params []any) []any {
	if len(params) == 0 || !s.matches(sql) {
		return params
	}
	masked := make([]any, len(params))
	for i := range masked {
		masked[i] = s.maskValue
	}
	return masked
}

// MaskNamed masks the values of named parameters. names and values are
// parallel; a value is masked when its name is sensitive or when sql is.
func (s *Sanitizer) MaskNamed(sql string, names []string, values []any) []any {
	if s.matches(sql) {
		return s.MaskParams(sql, values)
	}
	masked := make([]any, len(values))
	for i, v := range values {
		if i < len(names) && s.matches(names[i]) {
			masked[i] = s.maskValue
			continue
		}
		masked[i] = v
	}
	return masked
}

func (s *Sanitizer) matches(text string) bool {
	// \b does not split on underscores, so "user_password" needs the
	// segments checked too.
	for _, pattern := range s.patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == '_' }) {
		for _, pattern := range s.patterns {
			if pattern.MatchString(part) {
				return true
			}
		}
	}
	return false
}

// FormatParams converts parameters to a string for logging. Sensitive values
// should be masked before calling this.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatNamed renders named values as "[name=value, ...]".
func (s *Sanitizer) FormatNamed(names []string, values []any) string {
	if len(values) == 0 {
		return "[]"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		name := "?"
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		parts[i] = name + "=" + formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue truncates long values.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

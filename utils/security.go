// Package utils provides sanitization and validation of free text search
// queries before they reach a search backend.
package utils

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// SecurityConfig holds the policy applied by a QuerySanitizer.
type SecurityConfig struct {
	// MaxQueryLength is measured in bytes before sanitization.
	MaxQueryLength int

	// DisallowedPatterns are regular expressions matched against the lowercased query.
	DisallowedPatterns []string

	// AllowedSpecialChars lists entries of dangerousChars that are accepted anyway.
	AllowedSpecialChars []string

	StripHTMLTags       bool
	NormalizeWhitespace bool
}

const (
	// DefaultMaxQueryLength is the default maximum query length
	DefaultMaxQueryLength = 500
)

// DefaultSecurityConfig accepts apostrophes and slashes, which are common in
// venue and artist names ("Stubb's", "AC/DC").
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		MaxQueryLength:      DefaultMaxQueryLength,
		DisallowedPatterns:  []string{},
		AllowedSpecialChars: []string{"-", "_", ".", "!", "?", "&", "+", "@", "#", "'", "/"},
		StripHTMLTags:       true,
		NormalizeWhitespace: true,
	}
}

// QuerySanitizer validates and cleans search text.
type QuerySanitizer struct {
	config   *SecurityConfig
	patterns []*regexp.Regexp
}

var dangerousChars = []string{"<", ">", "'", "\"", ";", "\\", "/", "*"}

var scriptPatterns = regexp.MustCompile(`(?i)(javascript:|data:|vbscript:|on(load|error|click|mouseover)=)`)

var zeroWidthChars = strings.NewReplacer(
	"\u200B", "",
	"\u200C", "",
	"\u200D", "",
	"\uFEFF", "",
	"\u200E", "",
	"\u200F", "",
)

// NewQuerySanitizer creates a new query sanitizer. Invalid disallowed
// patterns are ignored.
func NewQuerySanitizer(config *SecurityConfig) *QuerySanitizer {
	if config == nil {
		config = DefaultSecurityConfig()
	}
	s := &QuerySanitizer{config: config}
	for _, p := range config.DisallowedPatterns {
		if re, err := regexp.Compile(p); err == nil {
			s.patterns = append(s.patterns, re)
		}
	}
	return s
}

// SanitizeQuery URL decodes the query, then removes zero-width characters,
// HTML tags and script protocols, and finally collapses whitespace.
func (s *QuerySanitizer) SanitizeQuery(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", nil
	}

	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}

	query = zeroWidthChars.Replace(query)

	if s.config.StripHTMLTags {
		query = stripHTMLTags(query)
	}

	query = scriptPatterns.ReplaceAllString(query, "")

	lowered := strings.ToLower(query)
	for _, re := range s.patterns {
		if re.MatchString(lowered) {
			return "", &SecurityError{
				Type:    "disallowed_pattern",
				Message: "Query contains disallowed pattern",
				Query:   query,
			}
		}
	}

	if s.config.NormalizeWhitespace {
		query = strings.Join(strings.Fields(query), " ")
	}

	return query, nil
}

func stripHTMLTags(input string) string {
	for {
		start := strings.Index(strings.ToLower(input), "<script")
		if start == -1 {
			break
		}
		end := strings.Index(strings.ToLower(input[start:]), "</script>")
		if end == -1 {
			input = input[:start]
			break
		}
		end += start + len("</script>")
		input = input[:start] + input[end:]
	}

	for {
		start := strings.Index(input, "<")
		if start == -1 {
			break
		}
		end := strings.Index(input[start:], ">")
		if end == -1 {
			input = input[:start]
			break
		}
		end += start + 1
		input = input[:start] + input[end:]
	}

	return input
}

// ValidateQuery rejects over-long queries, control characters and dangerous
// characters that are not explicitly allowed. Call it before SanitizeQuery.
func (s *QuerySanitizer) ValidateQuery(ctx context.Context, query string) error {
	if len(query) > s.config.MaxQueryLength {
		return &SecurityError{
			Type:    "query_too_long",
			Message: "Query exceeds maximum length",
			Query:   query,
		}
	}

	for _, r := range query {
		if r == 0 || (r < 32 && r != '\t' && r != '\n' && r != '\r') {
			return &SecurityError{
				Type:    "dangerous_character",
				Message: "Query contains null byte or control character",
				Query:   query,
			}
		}
	}

	for _, char := range dangerousChars {
		if !strings.Contains(query, char) || s.allowed(char) {
			continue
		}
		return &SecurityError{
			Type:    "dangerous_character",
			Message: "Query contains potentially dangerous character: " + char,
			Query:   query,
		}
	}

	return nil
}

func (s *QuerySanitizer) allowed(char string) bool {
	for _, a := range s.config.AllowedSpecialChars {
		if a == char {
			return true
		}
	}
	return false
}

// SecurityError represents a security-related error
type SecurityError struct {
	Type    string
	Message string
	Query   string
}

func (e *SecurityError) Error() string {
	return e.Message
}

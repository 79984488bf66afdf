package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// FieldType is the declared type of a validated field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
	TypeURL    FieldType = "url"
	TypeEmail  FieldType = "email"
	TypeArray  FieldType = "array"
)

// Score penalties applied per violation.
const (
	penaltyRequired = 20
	penaltyType     = 15
	penaltyShort    = 10
	penaltyLong     = 5
	penaltyPattern  = 10
	penaltyCustom   = 15
)

// Rule is a read-only check applied to one field of an external record.
type Rule struct {
	Field         string
	Required      bool
	Type          FieldType
	MinLength     int
	MaxLength     int
	Pattern       *regexp.Regexp
	Custom        func(value any) bool
	CustomMessage string
}

// ValidationResult is the outcome of validating one record.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Score    int      `json:"score"`
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDatetime parses the datetime formats connectors are known to send.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyRules evaluates rules against fields in rule order.
func applyRules(v *validator.Validate, rules []Rule, fields map[string]any) ValidationResult {
	result := ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
		Score:    100,
	}

	fail := func(penalty int, format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		result.Score -= penalty
	}

	for _, rule := range rules {
		value := fields[rule.Field]

		if isMissing(value) {
			if rule.Required {
				fail(penaltyRequired, "Required field '%s' is missing", rule.Field)
			}
			continue
		}

		if !matchesType(v, rule.Type, value) {
			fail(penaltyType, "Field '%s' must be a valid %s", rule.Field, rule.Type)
			continue
		}

		if s, ok := value.(string); ok {
			n := utf8.RuneCountInString(strings.TrimSpace(s))
			if rule.MinLength > 0 && n < rule.MinLength {
				fail(penaltyShort, "Field '%s' must be at least %d characters", rule.Field, rule.MinLength)
			}
			if rule.MaxLength > 0 && n > rule.MaxLength {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Field '%s' exceeds %d characters", rule.Field, rule.MaxLength))
				result.Score -= penaltyLong
			}
			if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
				fail(penaltyPattern, "Field '%s' has an invalid format", rule.Field)
			}
		}

		if rule.Custom != nil && !rule.Custom(value) {
			msg := rule.CustomMessage
			if msg == "" {
				msg = fmt.Sprintf("Field '%s' failed validation", rule.Field)
			}
			fail(penaltyCustom, "%s", msg)
		}
	}

	if result.Score < 0 {
		result.Score = 0
	}
	result.IsValid = len(result.Errors) == 0
	return result
}

func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	}
	return false
}

func matchesType(v *validator.Validate, t FieldType, value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case TypeDate:
		switch d := value.(type) {
		case time.Time:
			return !d.IsZero()
		case string:
			_, ok := ParseDatetime(d)
			return ok
		}
		return false
	case TypeURL:
		s, ok := value.(string)
		return ok && v.Var(s, "url") == nil && hasWebScheme(s)
	case TypeEmail:
		s, ok := value.(string)
		return ok && v.Var(s, "email") == nil
	case TypeArray:
		_, ok := value.([]string)
		return ok
	}
	return true
}

func hasWebScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

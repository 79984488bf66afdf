package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxFilterValues   = 20
	maxFilterValueLen = 100
)

var validFilterValue = regexp.MustCompile(`^[\p{L}\p{N}\s\-_&'.,/]+$`)

// ValidateFilterValues checks user supplied keyword filter values (genres,
// regions, countries) before they are turned into term filters.
func ValidateFilterValues(field string, values []string) error {
	if len(values) > maxFilterValues {
		return fmt.Errorf("too many %s filters: maximum %d allowed, got %d", field, maxFilterValues, len(values))
	}

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("empty or whitespace-only %s filter not allowed", field)
		}

		if len(v) > maxFilterValueLen {
			return fmt.Errorf("%s filter too long: maximum %d characters, got %d", field, maxFilterValueLen, len(v))
		}

		for _, r := range v {
			if unicode.IsControl(r) {
				return fmt.Errorf("control characters not allowed in %s filter: %q", field, v)
			}
		}

		if !validFilterValue.MatchString(v) {
			return fmt.Errorf("invalid characters in %s filter: %s", field, v)
		}
	}

	return nil
}

// ValidateSearchFilters runs ValidateFilterValues over every keyword filter of p.
func ValidateSearchFilters(p SearchParams) error {
	if err := ValidateFilterValues("genre", p.Genres); err != nil {
		return err
	}
	if err := ValidateFilterValues("region", p.Regions); err != nil {
		return err
	}
	if err := ValidateFilterValues("country", p.Countries); err != nil {
		return err
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return fmt.Errorf("end_date must not be before start_date")
	}
	if p.CapacityMin != nil && p.CapacityMax != nil && *p.CapacityMax < *p.CapacityMin {
		return fmt.Errorf("capacity_max must not be below capacity_min")
	}
	return nil
}

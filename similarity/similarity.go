// Package similarity provides the string, date and list comparisons used to
// detect duplicate records coming from different ingestion sources.
package similarity

import (
	"strings"
	"time"
)

// Engine compares values. With fuzzy matching disabled every comparison
// collapses to an exact-match indicator.
type Engine struct {
	fuzzy bool
}

func New(fuzzy bool) *Engine {
	return &Engine{fuzzy: fuzzy}
}

// Fuzzy reports whether approximate matching is enabled.
func (e *Engine) Fuzzy() bool {
	return e.fuzzy
}

// StringSimilarity returns a score in [0,1]. Comparison is case-insensitive and
// ignores surrounding whitespace.
func (e *Engine) StringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1
	}
	if !e.fuzzy || a == "" || b == "" {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

// DateSimilarity is a step function over the distance between two instants:
// 1 when equal, 0.5 within a day, 0.2 within two days, 0 otherwise.
func (e *Engine) DateSimilarity(d1, d2 time.Time) float64 {
	diff := d1.Sub(d2)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return 1
	case diff <= 24*time.Hour:
		return 0.5
	case diff <= 48*time.Hour:
		return 0.2
	default:
		return 0
	}
}

// ListSimilarity averages, over list1, the best match each element finds in
// list2. The measure is asymmetric.
func (e *Engine) ListSimilarity(list1, list2 []string) float64 {
	if len(list1) == 0 && len(list2) == 0 {
		return 1
	}
	if len(list1) == 0 || len(list2) == 0 {
		return 0
	}

	var total float64
	for _, a := range list1 {
		best := 0.0
		for _, b := range list2 {
			if s := e.StringSimilarity(a, b); s > best {
				best = s
				if best == 1 {
					break
				}
			}
		}
		total += best
	}
	return total / float64(len(list1))
}

// EditDistance is the Levenshtein distance between a and b counted in runes.
func EditDistance(a, b string) int {
	return editDistance([]rune(a), []rune(b))
}

func editDistance(a, b []rune) int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 0; i <= m; i++ {
		for j := 0; j <= n; j++ {
			if i == 0 {
				dp[i][j] = j
			} else if j == 0 {
				dp[i][j] = i
			} else if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
			}
		}
	}
	return dp[m][n]
}

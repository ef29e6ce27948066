// Package strings provides small text helpers for CLI output.
package strings

import (
	"strings"
)

// DefaultStatusMaxLen is the default maximum length for per-row status text
// in tabular output. Error chains from a failed probe can run to hundreds of
// characters; a row gets one line.
const DefaultStatusMaxLen = 60

// MinTruncateLen is the minimum maxLen value for OneLine. Values smaller than
// this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// OneLine collapses s to a single line and truncates it to maxLen characters,
// adding "..." if truncated. Newlines and runs of whitespace become single
// spaces.
//
// Truncation operates on runes rather than bytes, so multi-byte characters
// are never split.
func OneLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Package util provides common utility functions used across the codebase.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// ShellEscape quotes a single argument only when the remote shell would
// otherwise split or expand it. Plain words pass through unchanged so the
// command line stays readable in logs.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuoting) == -1 {
		return s
	}
	return ShellQuote(s)
}

// JoinArgs escapes every argument and joins them with single spaces, so the
// remote shell parses the result into the same argv.
func JoinArgs(args []string) string {
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = ShellEscape(a)
	}
	return strings.Join(escaped, " ")
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	// '=' is left out: an unquoted leading NAME=value is an assignment.
	return !strings.ContainsRune("-_/,.+:@%", r)
}

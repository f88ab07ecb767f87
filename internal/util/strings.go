package util

import (
	"fmt"
	"strings"
)

// JoinOrNone joins the non-empty items with ", ". With nothing left to
// show it returns "(none)", so report lines never end blank.
func JoinOrNone(items ...string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return "(none)"
	}
	return strings.Join(kept, ", ")
}

// CountNoun formats n followed by singular or plural: "1 file", "3 files".
func CountNoun(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

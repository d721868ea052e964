package specfile

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff from oldData to newData, or "" when they are equal.
func Diff(oldName, newName string, oldData, newData []byte) (string, error) {
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(oldData)),
		B:        splitLinesKeepNL(string(newData)),
		FromFile: oldName,
		ToFile:   newName,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(u)
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

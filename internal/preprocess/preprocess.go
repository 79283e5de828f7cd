// Package preprocess implements spec.md §4.4: the pure string transform
// applied to raw SQL text before parsing, grounded on the original
// treeMatch.py preprocess() function.
package preprocess

import (
	"regexp"
	"strings"

	"etm/internal/schema"
)

var (
	doubleQuoted = regexp.MustCompile(`"([^"]+)"`)
	datetimeCall = regexp.MustCompile(`(?i)\bdatetime\(\)`)
)

// Run applies the three-step preprocessing pass described in spec.md §4.4.
func Run(query string, db *schema.Database) string {
	query = strings.ReplaceAll(query, "`", `"`)
	query = rewriteQuotedLiterals(query, db)
	query = datetimeCall.ReplaceAllString(query, "datetime('now')")
	return query
}

func rewriteQuotedLiterals(query string, db *schema.Database) string {
	return doubleQuoted.ReplaceAllStringFunc(query, func(match string) string {
		word := match[1 : len(match)-1]
		if isSchemaWord(strings.ToLower(word), db) {
			return match
		}
		return "'" + word + "'"
	})
}

func isSchemaWord(lower string, db *schema.Database) bool {
	if db == nil {
		return false
	}
	if _, ok := db.Table(lower); ok {
		return true
	}
	for _, t := range db.Tables {
		for _, c := range t.Columns {
			if strings.ToLower(c) == lower {
				return true
			}
		}
	}
	return false
}

package repository

import "strings"

// inClause appends a parenthesized placeholder list for values to prefix.
func inClause(prefix string, values []string) (string, []interface{}) {
	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, value := range values {
		placeholders[i] = "?"
		args[i] = value
	}
	return prefix + "(" + strings.Join(placeholders, ",") + ")", args
}

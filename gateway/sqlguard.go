package gateway

import (
	"fmt"
	"strings"
)

// checkStatement accepts exactly one SELECT statement. A trailing semicolon
// is tolerated; any further semicolon is treated as a second statement, even
// inside a string literal.
func checkStatement(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}

	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("only a single statement is allowed")
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return fmt.Errorf("query is empty")
	}
	if !strings.EqualFold(fields[0], "select") {
		return fmt.Errorf("only SELECT queries are allowed")
	}

	return nil
}

// clauseEnders are the keywords that terminate a FROM or JOIN clause, so
// the scan stops picking up table names past it.
var clauseEnders = map[string]bool{
	"where": true, "group": true, "order": true, "limit": true,
	"having": true, "on": true, "using": true,
	"join": true, "inner": true, "left": true, "right": true,
	"full": true, "cross": true, "natural": true,
	"union": true, "intersect": true, "except": true,
}

// referencedTables extracts the identifiers named by FROM and JOIN clauses.
// This is keyword scanning, not SQL parsing: each clause is a comma-separated
// list whose elements start with a table name (quoted and qualified names
// reduce to their bare lowercased form), aliases and other trailing tokens
// are skipped, and a parenthesis opens a subquery whose own FROM clauses are
// scanned in turn. The scan errs toward reporting too many names, so an
// allowlisted check fails closed on anything it cannot parse.
func referencedTables(query string) []string {
	fields := strings.Fields(strings.ReplaceAll(query, ",", " , "))

	var tables []string
	for i := 0; i < len(fields)-1; i++ {
		word := strings.ToLower(fields[i])
		if word != "from" && word != "join" {
			continue
		}

		// Every comma starts a new element of the list; only the first
		// token of each element names a table.
		expect := true
		for j := i + 1; j < len(fields); j++ {
			tok := fields[j]
			if tok == "," {
				expect = true
				continue
			}
			if clauseEnders[strings.ToLower(tok)] {
				break
			}
			if !expect {
				continue
			}
			expect = false

			if strings.HasPrefix(tok, "(") {
				continue
			}
			name := strings.Trim(tok, "\"'`()")
			if name == "" {
				continue
			}
			if at := strings.LastIndexByte(name, '.'); at >= 0 {
				name = name[at+1:]
			}
			tables = append(tables, strings.ToLower(name))
		}
	}

	return tables
}

// checkTables enforces the table allowlist. An empty allowlist admits every
// table.
func checkTables(query string, allowed map[string]bool) error {
	if len(allowed) == 0 {
		return nil
	}

	for _, table := range referencedTables(query) {
		if !allowed[table] {
			return fmt.Errorf("table %q is not allowed", table)
		}
	}

	return nil
}

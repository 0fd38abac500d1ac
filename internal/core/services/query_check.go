package services

import (
	"regexp"
	"strings"
)

var (
	statementVerbs = map[string]bool{
		"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true, "DELETE": true,
		"CREATE": true, "DROP": true, "ALTER": true, "PRAGMA": true, "EXPLAIN": true,
		"SHOW": true, "DESCRIBE": true, "VALUES": true, "REPLACE": true, "SUMMARIZE": true,
	}

	leadingWordRe = regexp.MustCompile(`^\s*\(?\s*([A-Za-z]+)`)
	notInSelectRe = regexp.MustCompile(`(?i)\bNOT\s+IN\s*\(\s*SELECT\b`)
	eqNullRe      = regexp.MustCompile(`(?i)(?:!=|<>|=)\s*NULL\b`)
	unionRe       = regexp.MustCompile(`(?i)\bUNION\b(?:\s+ALL\b)?`)
)

// CheckQuery runs static checks over a SQL statement and returns the problems
// found, in a stable order. It never touches the database.
func CheckQuery(query string) []string {
	q := strings.TrimSpace(query)
	if q == "" {
		return []string{"query is empty"}
	}

	var issues []string

	m := leadingWordRe.FindStringSubmatch(q)
	if len(m) < 2 || !statementVerbs[strings.ToUpper(m[1])] {
		issues = append(issues, "query does not start with a SQL statement keyword such as SELECT or WITH")
	}

	stripped, openQuote := stripLiterals(q)
	if openQuote != 0 {
		issues = append(issues, "unbalanced quote: "+string(openQuote)+" is never closed")
	}
	if depth := parenDepth(stripped); depth > 0 {
		issues = append(issues, "unbalanced parentheses: missing )")
	} else if depth < 0 {
		issues = append(issues, "unbalanced parentheses: unexpected )")
	}
	if strings.Contains(strings.TrimSuffix(strings.TrimSpace(stripped), ";"), ";") {
		issues = append(issues, "multiple statements: submit one statement at a time")
	}

	if notInSelectRe.MatchString(stripped) {
		issues = append(issues, "NOT IN with a subquery returns no rows when the subquery yields NULL; consider NOT EXISTS")
	}
	if eqNullRe.MatchString(stripped) {
		issues = append(issues, "comparison with NULL using = or <> is never true; use IS NULL or IS NOT NULL")
	}
	for _, u := range unionRe.FindAllString(stripped, -1) {
		if !strings.Contains(strings.ToUpper(u), "ALL") {
			issues = append(issues, "UNION removes duplicate rows; use UNION ALL if duplicates should be kept")
			break
		}
	}
	return issues
}

// stripLiterals blanks out quoted strings and identifiers so structural checks
// ignore their contents. It returns the quote character left open, if any.
func stripLiterals(q string) (string, byte) {
	var b strings.Builder
	var open byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case open != 0:
			if c == open {
				// doubled quote is an escaped quote
				if i+1 < len(q) && q[i+1] == open {
					i++
					continue
				}
				open = 0
				b.WriteByte(c)
			}
		case c == '\'' || c == '"' || c == '`':
			open = c
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), open
}

func parenDepth(q string) int {
	depth := 0
	for _, c := range q {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return depth
			}
		}
	}
	return depth
}

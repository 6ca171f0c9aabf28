// Package query builds the list filters accepted by the remote documents API.
//
// Two syntaxes exist. Current servers take one JSON object per filter:
//
//	{"method":"limit","values":[100]}
//	{"method":"cursorAfter","values":["doc-42"]}
//
// Older servers take a function-call string:
//
//	limit(100)
//	cursorAfter("doc-42")
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Syntax selects how queries are rendered on the wire.
type Syntax string

const (
	SyntaxJSON   Syntax = "json"
	SyntaxLegacy Syntax = "legacy"
)

// ParseSyntax validates a syntax name. The empty string selects SyntaxJSON.
func ParseSyntax(s string) (Syntax, error) {
	switch Syntax(strings.ToLower(strings.TrimSpace(s))) {
	case "", SyntaxJSON:
		return SyntaxJSON, nil
	case SyntaxLegacy:
		return SyntaxLegacy, nil
	default:
		return "", fmt.Errorf("unknown query syntax %q (want %q or %q)", s, SyntaxJSON, SyntaxLegacy)
	}
}

// Method names
const (
	MethodLimit       = "limit"
	MethodCursorAfter = "cursorAfter"
)

// Query is a single list filter.
type Query struct {
	Method string `json:"method"`
	Values []any  `json:"values"`
}

// Limit caps the number of documents in one page.
func Limit(n int) Query {
	return Query{Method: MethodLimit, Values: []any{n}}
}

// CursorAfter starts the page right after the document with the given id.
func CursorAfter(id string) Query {
	return Query{Method: MethodCursorAfter, Values: []any{id}}
}

// Build renders the query in the given syntax.
func (q Query) Build(s Syntax) (string, error) {
	switch s {
	case SyntaxLegacy:
		args := make([]string, 0, len(q.Values))
		for _, v := range q.Values {
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("query %s: %w", q.Method, err)
			}
			args = append(args, string(b))
		}
		return q.Method + "(" + strings.Join(args, ",") + ")", nil
	case SyntaxJSON, "":
		b, err := json.Marshal(q)
		if err != nil {
			return "", fmt.Errorf("query %s: %w", q.Method, err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unknown query syntax %q", s)
	}
}

// Parse reads a query in either syntax.
func Parse(raw string) (Query, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var q Query
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return Query{}, fmt.Errorf("invalid query %q: %w", raw, err)
		}
		if q.Method == "" {
			return Query{}, fmt.Errorf("invalid query %q: missing method", raw)
		}
		return q, nil
	}

	open := strings.IndexByte(raw, '(')
	if open <= 0 || !strings.HasSuffix(raw, ")") {
		return Query{}, fmt.Errorf("invalid query %q", raw)
	}
	q := Query{Method: raw[:open]}
	args := strings.TrimSpace(raw[open+1 : len(raw)-1])
	if args == "" {
		return q, nil
	}
	if err := json.Unmarshal([]byte("["+args+"]"), &q.Values); err != nil {
		return Query{}, fmt.Errorf("invalid query %q: %w", raw, err)
	}
	return q, nil
}

// IntValue returns the first value as an int.
func (q Query) IntValue() (int, error) {
	if len(q.Values) == 0 {
		return 0, fmt.Errorf("%s: missing value", q.Method)
	}
	switch v := q.Values[0].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s: %v is not an integer", q.Method, v)
		}
		return int(v), nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("%s: %w", q.Method, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", q.Method, v)
	}
}

// StringValue returns the first value as a string.
func (q Query) StringValue() (string, error) {
	if len(q.Values) == 0 {
		return "", fmt.Errorf("%s: missing value", q.Method)
	}
	s, ok := q.Values[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", q.Method, q.Values[0])
	}
	return s, nil
}

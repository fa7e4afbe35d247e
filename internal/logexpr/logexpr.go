// Package logexpr converts logpoint format strings between the form users
// write and the form the debugger service stores.
//
// Users write expressions inline, in braces:
//
//	"a={a}, b={b}"
//
// The service stores positional parameters and a separate expression list:
//
//	"a=$0, b=$1", ["a", "b"]
package logexpr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ctagard/cdbg/internal/errors"
)

var paramRE = regexp.MustCompile(`\$([0-9]+)`)

// Split extracts each top-level {expression} of format into a separate
// list and replaces it with $N, where N is the index of the expression in
// the list. Identical expressions share one index. Nested braces are kept
// as part of the expression text.
//
// A space is inserted after $N when the next input character is a digit,
// so the agent does not read the digit as part of the index.
//
// Split returns an INVALID_FORMAT error if a '{' is never closed. A '}'
// outside an expression is copied through.
func Split(format string) (string, []string, error) {
	expressions := []string{}
	index := make(map[string]int)

	var out strings.Builder
	var current strings.Builder
	depth := 0
	needSeparator := false

	// Braces and digits are ASCII, so the scan works on bytes and copies
	// everything else through unchanged, including invalid UTF-8.
	for i := 0; i < len(format); i++ {
		c := format[i]
		if needSeparator && c >= '0' && c <= '9' {
			out.WriteByte(' ')
		}
		needSeparator = false

		switch {
		case c == '{':
			if depth > 0 {
				current.WriteByte(c)
			} else {
				current.Reset()
			}
			depth++
		case depth > 0 && c != '}':
			current.WriteByte(c)
		case depth > 0:
			depth--
			if depth > 0 {
				current.WriteByte(c)
				continue
			}
			expr := current.String()
			n, ok := index[expr]
			if !ok {
				n = len(expressions)
				index[expr] = n
				expressions = append(expressions, expr)
			}
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(n))
			needSeparator = true
		default:
			out.WriteByte(c)
		}
	}

	if depth > 0 {
		return "", nil, errors.InvalidFormat(format, `too many "{" characters in format string`)
	}
	return out.String(), expressions, nil
}

// Merge replaces each $N of format with {expressions[N]}. It reconstructs a
// display form of a format produced by Split; it does not evaluate anything.
// A $N whose index is out of range is left as is.
func Merge(format string, expressions []string) string {
	return paramRE.ReplaceAllStringFunc(format, func(token string) string {
		i, err := strconv.Atoi(token[1:])
		if err != nil || i >= len(expressions) {
			return token
		}
		return "{" + expressions[i] + "}"
	})
}

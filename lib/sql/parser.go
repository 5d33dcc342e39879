package sql

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseError describes where a query failed to parse. Line and Column are
// 1-based, Column counts characters.
type ParseError struct {
	Line   int
	Column int
	Near   string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("parse error at line %d column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("parse error at line %d column %d: %s near %q", e.Line, e.Column, e.Msg, e.Near)
}

// syntaxError is the error of the statement parsers. rest is the input
// that could not be parsed.
type syntaxError struct {
	rest string
	msg  string
}

func (e *syntaxError) Error() string { return e.msg }

func fail(rest, format string, args ...any) error {
	return &syntaxError{rest: rest, msg: fmt.Sprintf(format, args...)}
}

const nearLength = 24

// locate converts a syntax error into a ParseError for text.
func locate(text string, err error) *ParseError {
	var se *syntaxError
	if !errors.As(err, &se) {
		return &ParseError{Line: 1, Column: 1, Msg: err.Error()}
	}
	offset := len(text) - len(se.rest)
	before := text[:offset]

	line := strings.Count(before, "\n") + 1
	col := utf8.RuneCountInString(before[strings.LastIndexByte(before, '\n')+1:]) + 1

	near := se.rest
	if i := strings.IndexByte(near, '\n'); i >= 0 {
		near = near[:i]
	}
	if len(near) > nearLength {
		near = near[:nearLength]
	}
	return &ParseError{Line: line, Column: col, Near: near, Msg: se.msg}
}

// Parse parses a batch of statements separated by semicolons. Any error
// fails the whole batch.
func Parse(text string) (Query, error) {
	q := Query{}
	i := text
	for {
		i = skipSeparators(i)
		if i == "" {
			break
		}
		rest, stmt, err := parseStatement(i)
		if err != nil {
			return nil, locate(text, err)
		}
		q = append(q, stmt)

		rest = mightbeSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ';' {
			return nil, locate(text, fail(rest, "expected ';' after statement"))
		}
		i = rest[1:]
	}
	log.Debugf("parsed %d statements", len(q))
	return q, nil
}

func parseStatement(i string) (string, Statement, error) {
	switch word := strings.ToUpper(leadingWord(i)); word {
	case "USE":
		return wrap(parseUse(i))
	case "LET":
		return wrap(parseLet(i))
	case "RETURN":
		return wrap(parseReturn(i))
	case "CREATE":
		return wrap(parseCreate(i))
	case "SELECT":
		return wrap(parseSelect(i))
	case "DELETE":
		return wrap(parseDelete(i))
	case "CANCEL":
		return wrap(parseCancel(i))
	case "":
		return i, nil, fail(i, "expected a statement")
	default:
		return i, nil, fail(i, "unknown statement %s", word)
	}
}

func wrap[S Statement](rest string, s S, err error) (string, Statement, error) {
	if err != nil {
		return rest, nil, err
	}
	return rest, s, nil
}

// --------------------------------------------------------------------------
// Lexical helpers
// --------------------------------------------------------------------------

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func mightbeSpace(i string) string {
	return strings.TrimLeft(i, " \t\r\n")
}

func skipSeparators(i string) string {
	return strings.TrimLeft(i, " \t\r\n;")
}

func shouldbeSpace(i string) (string, error) {
	if i == "" || !isSpace(i[0]) {
		return i, fail(i, "expected whitespace")
	}
	return mightbeSpace(i), nil
}

func leadingWord(i string) string {
	n := 0
	for n < len(i) && isIdentChar(i[n]) {
		n++
	}
	return i[:n]
}

// keyword matches one of kws case-insensitively. A keyword must not be
// followed by an identifier character.
func keyword(i string, kws ...string) (string, bool) {
	for _, kw := range kws {
		if len(i) < len(kw) || !strings.EqualFold(i[:len(kw)], kw) {
			continue
		}
		if len(i) > len(kw) && isIdentChar(i[len(kw)]) {
			continue
		}
		return i[len(kw):], true
	}
	return i, false
}

func expectKeyword(i string, kws ...string) (string, error) {
	rest, ok := keyword(i, kws...)
	if !ok {
		return i, fail(i, "expected %s", strings.Join(kws, " or "))
	}
	return rest, nil
}

// ident parses a name made of letters, digits and underscores.
func ident(i string) (string, string, error) {
	w := leadingWord(i)
	if w == "" {
		return i, "", fail(i, "expected an identifier")
	}
	return i[len(w):], w, nil
}

func char(i string, c byte) (string, error) {
	if i == "" || i[0] != c {
		return i, fail(i, "expected '%c'", c)
	}
	return i[1:], nil
}

package sql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/dQL/lib/ctx"
)

// Value is an operand: a JSON literal or a $parameter.
type Value interface {
	fmt.Stringer
	// Compute resolves the value in scope c.
	Compute(c *ctx.Context) (any, error)
}

// Param references a bound variable.
type Param struct {
	Name string
}

func (p Param) String() string { return "$" + p.Name }

func (p Param) Compute(c *ctx.Context) (any, error) {
	v, ok := c.Var(p.Name)
	if !ok {
		return nil, fmt.Errorf("%w: $%s", ErrUndefinedParam, p.Name)
	}
	return v, nil
}

// Literal is a constant JSON value. Numbers are kept as json.Number.
type Literal struct {
	v    any
	text string
}

func (l Literal) String() string { return l.text }

// Compute returns a copy of the literal so callers may modify it.
func (l Literal) Compute(*ctx.Context) (any, error) {
	return copyValue(l.v), nil
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		s := make([]any, len(v))
		for i, e := range v {
			s[i] = copyValue(e)
		}
		return s
	default:
		return v
	}
}

func parseValue(i string) (string, Value, error) {
	if rest, ok := strings.CutPrefix(i, "$"); ok {
		rest, name, err := ident(rest)
		if err != nil {
			return rest, nil, err
		}
		return rest, Param{Name: name}, nil
	}
	return parseLiteral(i)
}

func parseLiteral(i string) (string, Value, error) {
	dec := json.NewDecoder(strings.NewReader(i))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		var se *json.SyntaxError
		switch {
		case errors.Is(err, io.EOF):
			return i, nil, fail(i, "expected a value")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return "", nil, fail("", "unexpected end of value")
		case errors.As(err, &se):
			off := min(max(int(se.Offset)-1, 0), len(i))
			return i[off:], nil, fail(i[off:], "invalid value: %v", err)
		default:
			return i, nil, fail(i, "invalid value: %v", err)
		}
	}

	text, err := json.Marshal(v)
	if err != nil {
		return i, nil, fail(i, "invalid value: %v", err)
	}
	return i[dec.InputOffset():], Literal{v: v, text: string(text)}, nil
}

// decodeDocument decodes a stored record.
func decodeDocument(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return doc, nil
}

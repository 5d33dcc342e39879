package sql

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// ReturnStatement returns a value: RETURN value.
type ReturnStatement struct {
	Value Value
}

func (s *ReturnStatement) String() string { return "RETURN " + s.Value.String() }

func (*ReturnStatement) Writeable() bool { return false }

func (s *ReturnStatement) Process(c *ctx.Context, _ *dbs.Executor, _ any) (any, error) {
	return s.Value.Compute(c)
}

func parseReturn(i string) (string, *ReturnStatement, error) {
	i, err := expectKeyword(i, "RETURN")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}

	stmt := &ReturnStatement{}
	if i, stmt.Value, err = parseValue(i); err != nil {
		return i, nil, err
	}
	return i, stmt, nil
}

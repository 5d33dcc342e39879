package sql

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// LetStatement binds a variable for the following statements:
// LET $name = value.
type LetStatement struct {
	Name  string
	Value Value
}

func (s *LetStatement) String() string {
	return "LET $" + s.Name + " = " + s.Value.String()
}

func (*LetStatement) Writeable() bool { return false }

func (s *LetStatement) Process(c *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	v, err := s.Value.Compute(c)
	if err != nil {
		return nil, err
	}
	return nil, exe.Bind(s.Name, v)
}

func parseLet(i string) (string, *LetStatement, error) {
	i, err := expectKeyword(i, "LET")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}
	if i, err = char(i, '$'); err != nil {
		return i, nil, err
	}

	stmt := &LetStatement{}
	if i, stmt.Name, err = ident(i); err != nil {
		return i, nil, err
	}
	if i, err = char(mightbeSpace(i), '='); err != nil {
		return i, nil, err
	}
	if i, stmt.Value, err = parseValue(mightbeSpace(i)); err != nil {
		return i, nil, err
	}
	return i, stmt, nil
}

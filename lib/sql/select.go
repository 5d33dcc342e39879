package sql

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// SelectStatement reads records: SELECT * FROM table[:id]. The result is
// always a list, empty if the record does not exist.
type SelectStatement struct {
	What Target
}

func (s *SelectStatement) String() string { return "SELECT * FROM " + s.What.String() }

func (*SelectStatement) Writeable() bool { return false }

func (s *SelectStatement) Process(_ *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	docs, _, err := s.What.fetch(exe)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(docs))
	for i, doc := range docs {
		out[i] = doc
	}
	return out, nil
}

func parseSelect(i string) (string, *SelectStatement, error) {
	i, err := expectKeyword(i, "SELECT")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}
	if i, err = char(i, '*'); err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}
	if i, err = expectKeyword(i, "FROM"); err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}

	stmt := &SelectStatement{}
	if i, stmt.What, err = parseTarget(i); err != nil {
		return i, nil, err
	}
	return i, stmt, nil
}

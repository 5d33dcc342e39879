package sql

import (
	"strings"

	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// UseStatement selects the namespace and/or database of the following
// statements: USE [NAMESPACE|NS ns] [DATABASE|DB db].
type UseStatement struct {
	NS string
	DB string
}

func (s *UseStatement) String() string {
	var b strings.Builder
	b.WriteString("USE")
	if s.NS != "" {
		b.WriteString(" NS ")
		b.WriteString(s.NS)
	}
	if s.DB != "" {
		b.WriteString(" DB ")
		b.WriteString(s.DB)
	}
	return b.String()
}

func (*UseStatement) Writeable() bool { return false }

// Process selects the namespace and database. Selecting the current ones
// again has no effect.
func (s *UseStatement) Process(_ *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	return nil, exe.Use(s.NS, s.DB)
}

func parseUse(i string) (string, *UseStatement, error) {
	i, err := expectKeyword(i, "USE")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}

	stmt := &UseStatement{}
	if rest, ok := keyword(i, "NAMESPACE", "NS"); ok {
		if rest, err = shouldbeSpace(rest); err != nil {
			return rest, nil, err
		}
		if rest, stmt.NS, err = ident(rest); err != nil {
			return rest, nil, err
		}
		i = rest

		// optional database after the namespace
		rest, err = shouldbeSpace(rest)
		if err != nil {
			return i, stmt, nil
		}
		if rest, ok = keyword(rest, "DATABASE", "DB"); !ok {
			return i, stmt, nil
		}
		if rest, err = shouldbeSpace(rest); err != nil {
			return rest, nil, err
		}
		if rest, stmt.DB, err = ident(rest); err != nil {
			return rest, nil, err
		}
		return rest, stmt, nil
	}

	rest, err := expectKeyword(i, "NAMESPACE", "NS", "DATABASE", "DB")
	if err != nil {
		return rest, nil, err
	}
	if rest, err = shouldbeSpace(rest); err != nil {
		return rest, nil, err
	}
	if rest, stmt.DB, err = ident(rest); err != nil {
		return rest, nil, err
	}
	return rest, stmt, nil
}

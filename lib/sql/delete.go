package sql

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// DeleteStatement removes a record or every record of a table:
// DELETE [FROM] table[:id]. Deleting a missing record is not an error.
type DeleteStatement struct {
	What Target
}

func (s *DeleteStatement) String() string { return "DELETE " + s.What.String() }

func (*DeleteStatement) Writeable() bool { return true }

func (s *DeleteStatement) Process(c *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	txn := exe.Txn()

	if s.What.ID != "" {
		key, err := s.What.recordKey(exe.Options(), s.What.ID)
		if err != nil {
			return nil, err
		}
		if err := txn.Del(c, key); err != nil {
			return nil, err
		}
		return []any{}, nil
	}

	// collect first, the scan must not see its own deletes
	_, ks, err := s.What.fetch(exe)
	if err != nil {
		return nil, err
	}
	for _, key := range ks {
		if err := txn.Del(c, key); err != nil {
			return nil, err
		}
	}
	return []any{}, nil
}

func parseDelete(i string) (string, *DeleteStatement, error) {
	i, err := expectKeyword(i, "DELETE")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}
	if rest, ok := keyword(i, "FROM"); ok {
		if i, err = shouldbeSpace(rest); err != nil {
			return i, nil, err
		}
	}

	stmt := &DeleteStatement{}
	if i, stmt.What, err = parseTarget(i); err != nil {
		return i, nil, err
	}
	return i, stmt, nil
}

package sql

import (
	"fmt"

	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/google/uuid"
)

// CreateStatement writes a new record:
// CREATE table[:id] [CONTENT value]. A random id is used when none is
// given. The stored document is the content plus an id field.
type CreateStatement struct {
	What    Target
	Content Value
}

func (s *CreateStatement) String() string {
	if s.Content == nil {
		return "CREATE " + s.What.String()
	}
	return "CREATE " + s.What.String() + " CONTENT " + s.Content.String()
}

func (*CreateStatement) Writeable() bool { return true }

func (s *CreateStatement) Process(c *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	id := s.What.ID
	if id == "" {
		id = uuid.NewString()
	}
	key, err := s.What.recordKey(exe.Options(), id)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	if s.Content != nil {
		v, err := s.Content.Compute(c)
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case map[string]any:
			doc = copyValue(v).(map[string]any)
		case nil:
		default:
			return nil, fmt.Errorf("%w, got %T", ErrInvalidContent, v)
		}
	}
	doc["id"] = s.What.thing(id)

	txn := exe.Txn()
	exists, err := txn.Exists(c, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrRecordExists, s.What.thing(id))
	}

	b, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := txn.Put(c, key, b); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseCreate(i string) (string, *CreateStatement, error) {
	i, err := expectKeyword(i, "CREATE")
	if err != nil {
		return i, nil, err
	}
	if i, err = shouldbeSpace(i); err != nil {
		return i, nil, err
	}

	stmt := &CreateStatement{}
	if i, stmt.What, err = parseTarget(i); err != nil {
		return i, nil, err
	}

	rest, err := shouldbeSpace(i)
	if err != nil {
		return i, stmt, nil
	}
	rest, ok := keyword(rest, "CONTENT")
	if !ok {
		return i, stmt, nil
	}
	if rest, err = shouldbeSpace(rest); err != nil {
		return rest, nil, err
	}
	if rest, stmt.Content, err = parseValue(rest); err != nil {
		return rest, nil, err
	}
	return rest, stmt, nil
}

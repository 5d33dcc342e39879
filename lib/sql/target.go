package sql

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/lib/keys"
	"github.com/ValentinKolb/dQL/lib/store"
)

// Target is a table or a single record of a table.
type Target struct {
	Table string
	ID    string
}

func (t Target) String() string {
	if t.ID == "" {
		return t.Table
	}
	return t.Table + ":" + t.ID
}

// thing is the record reference stored in the id field of a document
func (t Target) thing(id string) string { return t.Table + ":" + id }

func isIDChar(c byte) bool { return isIdentChar(c) || c == '-' }

func parseTarget(i string) (string, Target, error) {
	rest, table, err := ident(i)
	if err != nil {
		return rest, Target{}, fail(i, "expected a table name")
	}
	if rest == "" || rest[0] != ':' {
		return rest, Target{Table: table}, nil
	}
	rest = rest[1:]
	n := 0
	for n < len(rest) && isIDChar(rest[n]) {
		n++
	}
	if n == 0 {
		return rest, Target{}, fail(rest, "expected a record id")
	}
	return rest[n:], Target{Table: table, ID: rest[:n]}, nil
}

// recordKey returns the key of record id of the target table in the
// selected database.
func (t Target) recordKey(opt dbs.Options, id string) ([]byte, error) {
	if err := opt.NeedsDB(); err != nil {
		return nil, err
	}
	return keys.Record(opt.NS, opt.DB, t.Table, id)
}

func (t Target) tableRange(opt dbs.Options) (store.Range, error) {
	if err := opt.NeedsDB(); err != nil {
		return store.Range{}, err
	}
	return keys.TableRange(opt.NS, opt.DB, t.Table)
}

// fetch returns the records of the target: the single record if an id is
// set, every record of the table otherwise.
func (t Target) fetch(exe *dbs.Executor) ([]map[string]any, [][]byte, error) {
	c := exe.Context()
	txn := exe.Txn()

	if t.ID != "" {
		key, err := t.recordKey(exe.Options(), t.ID)
		if err != nil {
			return nil, nil, err
		}
		v, ok, err := txn.Get(c, key)
		if err != nil || !ok {
			return nil, nil, err
		}
		doc, err := decodeDocument(v)
		if err != nil {
			return nil, nil, err
		}
		return []map[string]any{doc}, [][]byte{key}, nil
	}

	r, err := t.tableRange(exe.Options())
	if err != nil {
		return nil, nil, err
	}
	it, err := txn.Scan(c, r)
	if err != nil {
		return nil, nil, err
	}
	defer it.Close()

	var docs []map[string]any
	var ks [][]byte
	for it.Next() {
		doc, err := decodeDocument(it.Value())
		if err != nil {
			return nil, nil, fmt.Errorf("record %q: %w", it.Key(), err)
		}
		docs = append(docs, doc)
		ks = append(ks, it.Key())
	}
	if err := it.Err(); err != nil {
		return nil, nil, err
	}
	return docs, ks, nil
}

func encodeDocument(doc map[string]any) ([]byte, error) {
	return json.Marshal(doc)
}

package dql

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/ValentinKolb/dQL/lib/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string, opts ...Option) *Datastore {
	t.Helper()
	ds, err := New(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("mysql://localhost")
	assert.ErrorIs(t, err, kvs.ErrInvalidPath)
}

func TestExecute(t *testing.T) {
	for name, path := range map[string]string{
		"memory": "memory",
		"file":   "file://" + filepath.Join(t.TempDir(), "dql.db"),
	} {
		t.Run(name, func(t *testing.T) {
			ds := open(t, path)
			sess := dbs.NewSession(iam.Root()).WithNS("test").WithDB("app")

			res, err := ds.Execute(context.Background(), `CREATE person:tobie CONTENT {"name":"Tobie"}`, sess, nil)
			require.NoError(t, err)
			require.Len(t, res, 1)
			require.NoError(t, res[0].Err)

			res, err = ds.Execute(context.Background(), "SELECT * FROM person; RETURN $name; RETURN $session", sess, dbs.Variables{"name": "x"})
			require.NoError(t, err)
			require.Len(t, res, 3)
			assert.Equal(t, []any{map[string]any{"id": "person:tobie", "name": "Tobie"}}, res[0].Result)
			assert.Equal(t, "x", res[1].Result)
			assert.Equal(t, "test", res[2].Result.(map[string]any)["ns"])

			b, err := json.Marshal(res)
			require.NoError(t, err)
			assert.Contains(t, string(b), `"status":"OK"`)
		})
	}
}

func TestExecuteParseError(t *testing.T) {
	ds := open(t, "memory")
	sess := dbs.NewSession(iam.Root()).WithNS("test").WithDB("app")

	res, err := ds.Execute(context.Background(), "CREATE person:a; SELEC * FROM person", sess, nil)
	var pe *sql.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Nil(t, res)

	// nothing was executed
	res, err = ds.Execute(context.Background(), "SELECT * FROM person", sess, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, res[0].Result)
}

func TestStopOnError(t *testing.T) {
	sess := dbs.NewSession(iam.Root()).WithNS("test").WithDB("app")
	q := "CREATE person:a; RETURN $missing; CREATE person:b"

	res, err := open(t, "memory").Execute(context.Background(), q, sess, nil)
	require.NoError(t, err)
	assert.NoError(t, res[0].Err)
	assert.ErrorIs(t, res[1].Err, sql.ErrUndefinedParam)
	assert.NoError(t, res[2].Err)

	res, err = open(t, "memory", WithStopOnError(true)).Execute(context.Background(), q, sess, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res[0].Err, dbs.ErrQueryCancelled)
	assert.ErrorIs(t, res[1].Err, sql.ErrUndefinedParam)
	assert.ErrorIs(t, res[2].Err, dbs.ErrQueryNotExecuted)
}

func TestSessionScope(t *testing.T) {
	ds := open(t, "memory", WithLock(true))

	res, err := ds.Execute(context.Background(), "CREATE person:a", nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res[0].Err, dbs.ErrNsEmpty)

	res, err = ds.Execute(context.Background(), "USE NS test", dbs.NewSession(nil), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res[0].Err, iam.ErrNotAllowed)
}

func TestProcessCancelledContext(t *testing.T) {
	ds := open(t, "memory")
	q, err := sql.Parse("RETURN 1; RETURN 2")
	require.NoError(t, err)

	goCtx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := ds.Process(goCtx, q, dbs.NewSession(iam.Root()), nil)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestUseSelection(t *testing.T) {
	ds := open(t, "memory")

	for _, tc := range []struct {
		query  string
		ns, db string
	}{
		{query: "USE NS test", ns: "test", db: ""},
		{query: "USE DB test", ns: "", db: "test"},
		{query: "USE NS test DB test", ns: "test", db: "test"},
		{query: "USE NAMESPACE test DATABASE app", ns: "test", db: "app"},
		{query: "USE NS test DB test; USE NS test DB test", ns: "test", db: "test"},
		{query: "USE NS test; USE DB app", ns: "test", db: "app"},
		{query: "USE DB app; USE NS test", ns: "test", db: "app"},
	} {
		t.Run(tc.query, func(t *testing.T) {
			res, err := ds.Execute(context.Background(), tc.query+"; RETURN $session", dbs.NewSession(iam.Root()), nil)
			require.NoError(t, err)
			for _, r := range res {
				require.NoError(t, r.Err)
			}

			sess, ok := res[len(res)-1].Result.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.ns, sess["ns"])
			assert.Equal(t, tc.db, sess["db"])
		})
	}
}

func TestUseIdempotent(t *testing.T) {
	ds := open(t, "memory")
	sess := dbs.NewSession(iam.Root())

	once, err := ds.Execute(context.Background(), "USE NS test DB test; RETURN $session", sess, nil)
	require.NoError(t, err)
	twice, err := ds.Execute(context.Background(), "USE NS test DB test; USE NS test DB test; RETURN $session", sess, nil)
	require.NoError(t, err)

	assert.Equal(t, once[len(once)-1].Result, twice[len(twice)-1].Result)
}

func TestProcessNilSession(t *testing.T) {
	ds := open(t, "memory")

	res, err := ds.Execute(context.Background(), "USE NS test; RETURN 1", nil, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.ErrorIs(t, res[0].Err, iam.ErrNotAllowed)

	out, err := res[1].Output()
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), out)
}

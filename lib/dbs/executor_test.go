package dbs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type putStmt struct{ key, value string }

func (s putStmt) String() string  { return "PUT " + s.key }
func (s putStmt) Writeable() bool { return true }
func (s putStmt) Process(c *ctx.Context, exe *Executor, _ any) (any, error) {
	return s.value, exe.Txn().Put(c, []byte(s.key), []byte(s.value))
}

type getStmt struct{ key string }

func (s getStmt) String() string  { return "GET " + s.key }
func (s getStmt) Writeable() bool { return false }
func (s getStmt) Process(c *ctx.Context, exe *Executor, _ any) (any, error) {
	v, ok, err := exe.Txn().Get(c, []byte(s.key))
	if err != nil || !ok {
		return nil, err
	}
	return string(v), nil
}

type failStmt struct{}

func (failStmt) String() string  { return "FAIL" }
func (failStmt) Writeable() bool { return false }
func (failStmt) Process(*ctx.Context, *Executor, any) (any, error) {
	return nil, errBoom
}

type cancelStmt struct{}

func (cancelStmt) String() string  { return "CANCEL" }
func (cancelStmt) Writeable() bool { return false }
func (cancelStmt) Process(_ *ctx.Context, exe *Executor, _ any) (any, error) {
	exe.Cancel()
	return nil, nil
}

type useStmt struct{ ns, db string }

func (useStmt) String() string  { return "USE" }
func (useStmt) Writeable() bool { return false }
func (s useStmt) Process(_ *ctx.Context, exe *Executor, _ any) (any, error) {
	return nil, exe.Use(s.ns, s.db)
}

type letStmt struct {
	name  string
	value any
}

func (letStmt) String() string  { return "LET" }
func (letStmt) Writeable() bool { return false }
func (s letStmt) Process(_ *ctx.Context, exe *Executor, _ any) (any, error) {
	return nil, exe.Bind(s.name, s.value)
}

// scopeStmt returns what the statement sees of its scope
type scopeStmt struct{ name string }

func (scopeStmt) String() string  { return "SCOPE" }
func (scopeStmt) Writeable() bool { return false }
func (s scopeStmt) Process(c *ctx.Context, exe *Executor, _ any) (any, error) {
	v, _ := c.Var(s.name)
	return []any{c.NS(), c.DB(), exe.Options().NS, exe.Options().DB, v}, nil
}

func newDatastore(t *testing.T) *kvs.Datastore {
	t.Helper()
	ds, err := kvs.New("memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func read(t *testing.T, ds *kvs.Datastore, key string) (string, bool) {
	t.Helper()
	tx, err := ds.Transaction(context.Background(), false, false)
	require.NoError(t, err)
	defer tx.Cancel()
	v, ok, err := tx.Get(context.Background(), []byte(key))
	require.NoError(t, err)
	return string(v), ok
}

func root() *ctx.Context { return ctx.Background().Freeze() }

func TestExecuteCommits(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(ds)

	res, err := exe.Execute(root(), Options{}, []Statement{
		putStmt{"a", "1"},
		failStmt{},
		getStmt{"a"},
	})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.NoError(t, res[0].Err)
	assert.ErrorIs(t, res[1].Err, errBoom)
	assert.NoError(t, res[2].Err)
	assert.Equal(t, "1", res[2].Result)

	v, ok := read(t, ds, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestExecuteStopOnError(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(ds, WithStopOnError(true))

	res, err := exe.Execute(root(), Options{}, []Statement{
		putStmt{"a", "1"},
		failStmt{},
		putStmt{"b", "2"},
	})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.ErrorIs(t, res[0].Err, ErrQueryCancelled)
	assert.Nil(t, res[0].Result)
	assert.ErrorIs(t, res[1].Err, errBoom)
	assert.ErrorIs(t, res[2].Err, ErrQueryNotExecuted)

	_, ok := read(t, ds, "a")
	assert.False(t, ok)
}

func TestExecuteCancel(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(ds)

	res, err := exe.Execute(root(), Options{}, []Statement{
		putStmt{"a", "1"},
		cancelStmt{},
		putStmt{"b", "2"},
		getStmt{"a"},
	})
	require.NoError(t, err)
	require.Len(t, res, 4)

	assert.ErrorIs(t, res[0].Err, ErrQueryCancelled)
	assert.NoError(t, res[1].Err)
	assert.ErrorIs(t, res[2].Err, ErrQueryNotExecuted)
	assert.ErrorIs(t, res[3].Err, ErrQueryNotExecuted)

	_, ok := read(t, ds, "a")
	assert.False(t, ok)
	_, ok = read(t, ds, "b")
	assert.False(t, ok)
}

func TestExecuteNoStateBetweenCalls(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(ds)

	res, err := exe.Execute(root(), Options{}, []Statement{cancelStmt{}})
	require.NoError(t, err)
	require.Len(t, res, 1)

	res, err = exe.Execute(root(), Options{}, []Statement{putStmt{"a", "1"}})
	require.NoError(t, err)
	require.NoError(t, res[0].Err)

	_, ok := read(t, ds, "a")
	assert.True(t, ok)
	assert.Nil(t, exe.Txn())
}

func TestExecuteEmpty(t *testing.T) {
	res, err := NewExecutor(newDatastore(t)).Execute(root(), Options{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

type conflictTransactor struct {
	ds *kvs.Datastore
}

// Transaction returns transactions that lose against a write made right
// after they were opened.
func (c conflictTransactor) Transaction(goCtx context.Context, write, lock bool) (*kvs.Transaction, error) {
	tx, err := c.ds.Transaction(goCtx, write, lock)
	if err != nil {
		return nil, err
	}
	other, err := c.ds.Transaction(goCtx, true, false)
	if err != nil {
		return nil, err
	}
	if err := other.Put(goCtx, []byte("a"), []byte("other")); err != nil {
		return nil, err
	}
	return tx, other.Commit(goCtx)
}

func TestExecuteCommitFailure(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(conflictTransactor{ds})

	res, err := exe.Execute(root(), Options{}, []Statement{
		putStmt{"a", "1"},
		failStmt{},
	})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.ErrorIs(t, res[0].Err, ErrCommitFailed)
	assert.True(t, kvs.IsConflict(res[0].Err))
	assert.Nil(t, res[0].Result)
	assert.ErrorIs(t, res[1].Err, errBoom)

	v, _ := read(t, ds, "a")
	assert.Equal(t, "other", v)
}

func TestExecuteTransactionError(t *testing.T) {
	ds := newDatastore(t)
	goCtx, cancel := context.WithCancel(context.Background())

	// hold the serialization lock so the executor has to wait for it
	held, err := ds.Transaction(context.Background(), false, true)
	require.NoError(t, err)
	defer held.Cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res, err := NewExecutor(ds, WithLock(true)).Execute(ctx.New(goCtx).Freeze(), Options{}, []Statement{getStmt{"a"}})
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestUseAndBind(t *testing.T) {
	ds := newDatastore(t)
	exe := NewExecutor(ds)

	start := root()
	res, err := exe.Execute(start, Options{Auth: iam.Namespace("test")}, []Statement{
		scopeStmt{"x"},
		useStmt{ns: "test", db: "app"},
		letStmt{"x", 42},
		scopeStmt{"x"},
		useStmt{ns: "other"},
		useStmt{db: "second"},
		scopeStmt{"x"},
	})
	require.NoError(t, err)
	require.Len(t, res, 7)

	assert.Equal(t, []any{"", "", "", "", nil}, res[0].Result)
	assert.NoError(t, res[1].Err)
	assert.Equal(t, []any{"test", "app", "test", "app", 42}, res[3].Result)
	assert.ErrorIs(t, res[4].Err, iam.ErrNotAllowed)
	assert.NoError(t, res[5].Err)
	assert.Equal(t, []any{"test", "second", "test", "second", 42}, res[6].Result)

	// the scope handed in is untouched
	_, ok := start.Var("x")
	assert.False(t, ok)
	assert.Equal(t, "", start.NS())
}

func TestUseDatabaseWithoutNamespace(t *testing.T) {
	res, err := NewExecutor(newDatastore(t)).Execute(root(), Options{Auth: iam.Root()}, []Statement{
		useStmt{db: "app"},
		scopeStmt{"x"},
	})
	require.NoError(t, err)
	require.NoError(t, res[0].Err)
	assert.Equal(t, []any{"", "app", "", "app", nil}, res[1].Result)

	// a namespace level identity still needs its namespace
	res, err = NewExecutor(newDatastore(t)).Execute(root(), Options{Auth: iam.Namespace("test")}, []Statement{
		useStmt{db: "app"},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, res[0].Err, iam.ErrNotAllowed)
}

func TestSessionContext(t *testing.T) {
	sess := NewSession(iam.Database("test", "app")).
		WithNS("test").
		WithDB("app").
		WithOrigin("42", "127.0.0.1", "cli")

	c := sess.Context(ctx.Background())
	assert.True(t, c.Frozen())
	assert.Equal(t, "test", c.NS())
	assert.Equal(t, "app", c.DB())
	assert.Equal(t, iam.LevelDB, c.Auth().Level())

	s, ok := c.Var("session")
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", s.(map[string]any)["ip"])

	c, err := Variables{"name": "tobie"}.Attach(c)
	require.NoError(t, err)
	v, _ := c.Var("name")
	assert.Equal(t, "tobie", v)

	assert.Equal(t, Options{Auth: sess.Auth(), NS: "test", DB: "app"}, sess.Options())
	assert.Equal(t, iam.LevelNo, NewSession(nil).Auth().Level())
}

func TestOptionsNeeds(t *testing.T) {
	assert.ErrorIs(t, Options{}.NeedsNS(), ErrNsEmpty)
	assert.ErrorIs(t, Options{}.NeedsDB(), ErrNsEmpty)
	assert.ErrorIs(t, Options{NS: "test"}.NeedsDB(), ErrDbEmpty)
	assert.NoError(t, Options{NS: "test", DB: "app"}.NeedsDB())
}

func TestResponseJSON(t *testing.T) {
	b, err := json.Marshal(Response{Time: time.Millisecond, Result: []int{1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"1ms","status":"OK","result":[1]}`, string(b))

	b, err = json.Marshal(Response{Time: time.Millisecond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"1ms","status":"OK","result":null}`, string(b))

	b, err = json.Marshal(Response{Time: 2 * time.Second, Err: errBoom})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"2s","status":"ERR","detail":"boom"}`, string(b))
}

func TestParseVariables(t *testing.T) {
	vars := ParseVariables(map[string]string{
		"n":   "42",
		"s":   "plain text",
		"q":   `"quoted"`,
		"obj": `{"a":true}`,
	})
	assert.Equal(t, Variables{
		"n":   float64(42),
		"s":   "plain text",
		"q":   "quoted",
		"obj": map[string]any{"a": true},
	}, vars)
}

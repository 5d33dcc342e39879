package dql

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/ValentinKolb/dQL/lib/sql"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dql")

type options struct {
	stopOnError bool
	lock        bool
	kv          []kvs.Option
}

// Option configures a Datastore.
type Option func(*options)

// WithStopOnError makes the first failing statement cancel its batch.
func WithStopOnError(stop bool) Option {
	return func(o *options) { o.stopOnError = stop }
}

// WithLock runs every batch with the serialization lock held, so batches
// never conflict with each other.
func WithLock(lock bool) Option {
	return func(o *options) { o.lock = lock }
}

// WithKVOptions passes options to the key-value layer.
func WithKVOptions(opts ...kvs.Option) Option {
	return func(o *options) { o.kv = append(o.kv, opts...) }
}

// Datastore executes queries against one storage backend. It is safe for
// concurrent use.
type Datastore struct {
	kv          *kvs.Datastore
	stopOnError bool
	lock        bool
}

// New opens a Datastore for the connection string path, see kvs.New.
func New(path string, opts ...Option) (*Datastore, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	kv, err := kvs.New(path, o.kv...)
	if err != nil {
		return nil, err
	}
	return &Datastore{kv: kv, stopOnError: o.stopOnError, lock: o.lock}, nil
}

// KV returns the key-value layer of the datastore.
func (ds *Datastore) KV() *kvs.Datastore { return ds.kv }

// Close closes the storage backend.
func (ds *Datastore) Close() error { return ds.kv.Close() }

// Execute parses text and processes it. A parse error fails the whole
// request before anything is executed.
func (ds *Datastore) Execute(goCtx context.Context, text string, sess *dbs.Session, vars dbs.Variables) ([]dbs.Response, error) {
	q, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	return ds.Process(goCtx, q, sess, vars)
}

// Process executes a parsed query in a single transaction for session sess
// with vars bound as parameters. A nil sess runs unauthenticated (iam.None),
// so every USE of the query fails with iam.ErrNotAllowed.
func (ds *Datastore) Process(goCtx context.Context, q sql.Query, sess *dbs.Session, vars dbs.Variables) ([]dbs.Response, error) {
	if sess == nil {
		sess = dbs.NewSession(nil)
	}
	c := sess.Context(ctx.New(goCtx))
	c, err := vars.Attach(c)
	if err != nil {
		return nil, fmt.Errorf("failed to bind variables: %w", err)
	}
	c.Freeze()

	exe := dbs.NewExecutor(ds.kv, dbs.WithStopOnError(ds.stopOnError), dbs.WithLock(ds.lock))
	res, err := exe.Execute(c, sess.Options(), q.Statements())
	if err != nil {
		log.Warningf("failed to execute query: %v", err)
		return nil, err
	}
	return res, nil
}

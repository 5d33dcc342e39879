package dbs

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/kvs"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dbs")

// Transactor opens the transaction a batch runs in. *kvs.Datastore
// implements it.
type Transactor interface {
	Transaction(ctx context.Context, write, lock bool) (*kvs.Transaction, error)
}

// Statement is a single executable statement.
type Statement interface {
	fmt.Stringer
	// Writeable reports whether the statement may write.
	Writeable() bool
	// Process runs the statement inside the batch transaction of exe. doc
	// is the current document for nested statements and nil otherwise.
	Process(c *ctx.Context, exe *Executor, doc any) (any, error)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithStopOnError makes the first failing statement cancel the batch, like
// an explicit CANCEL would.
func WithStopOnError(stop bool) ExecutorOption {
	return func(e *Executor) { e.stopOnError = stop }
}

// WithLock opens the batch transaction with the serialization lock held.
func WithLock(lock bool) ExecutorOption {
	return func(e *Executor) { e.lock = lock }
}

// Executor runs batches of statements in one transaction each. It is not
// safe for concurrent use; create one per request.
type Executor struct {
	ds          Transactor
	stopOnError bool
	lock        bool

	// state of the running batch
	txn       *kvs.Transaction
	opt       Options
	c         *ctx.Context
	cancelled bool
}

// NewExecutor returns an Executor opening its transactions on ds.
func NewExecutor(ds Transactor, opts ...ExecutorOption) *Executor {
	e := &Executor{ds: ds}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Txn returns the transaction of the running batch.
func (e *Executor) Txn() *kvs.Transaction { return e.txn }

// Options returns the options of the running batch.
func (e *Executor) Options() Options { return e.opt }

// Context returns the current scope of the running batch.
func (e *Executor) Context() *ctx.Context { return e.c }

// Use selects a namespace and/or database for the following statements.
// Empty arguments keep the current selection. A database can be selected
// before any namespace. The ns and db of $session follow the selection.
func (e *Executor) Use(ns, db string) error {
	opt := e.opt
	if ns != "" {
		if err := opt.Auth.CheckNamespace(ns); err != nil {
			return err
		}
		opt.NS = ns
	}
	if db != "" {
		if err := opt.Auth.CheckDatabase(opt.NS, db); err != nil {
			return err
		}
		opt.DB = db
	}

	child := e.c.Child()
	if err := child.SetNS(opt.NS); err != nil {
		return err
	}
	if err := child.SetDB(opt.DB); err != nil {
		return err
	}
	if v, ok := e.c.Var("session"); ok {
		if sess, ok := v.(map[string]any); ok {
			sess = maps.Clone(sess)
			sess["ns"], sess["db"] = opt.NS, opt.DB
			if err := child.Bind("session", sess); err != nil {
				return err
			}
		}
	}
	e.c = child.Freeze()
	e.opt = opt
	return nil
}

// Bind makes value visible as $name to the following statements.
func (e *Executor) Bind(name string, value any) error {
	child := e.c.Child()
	if err := child.Bind(name, value); err != nil {
		return err
	}
	e.c = child.Freeze()
	return nil
}

// Cancel terminates the running batch after the current statement.
func (e *Executor) Cancel() { e.cancelled = true }

func (e *Executor) reset(c *ctx.Context, opt Options) {
	e.txn = nil
	e.opt = opt
	e.c = c
	e.cancelled = false
}

// Execute runs stmts in order inside one transaction, writeable if any of
// the statements is, and returns one Response per statement. An error is
// only returned if the transaction cannot be opened.
func (e *Executor) Execute(c *ctx.Context, opt Options, stmts []Statement) ([]Response, error) {
	if len(stmts) == 0 {
		return []Response{}, nil
	}
	start := time.Now()
	defer func() { executeDuration.UpdateDuration(start) }()

	e.reset(c, opt)
	defer e.reset(nil, Options{})

	write := false
	for _, stmt := range stmts {
		if stmt.Writeable() {
			write = true
			break
		}
	}

	txn, err := e.ds.Transaction(c, write, e.lock)
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}
	e.txn = txn
	log.Debugf("executing %d statements in transaction %s", len(stmts), txn.ID())

	out := make([]Response, 0, len(stmts))
	for i, stmt := range stmts {
		stmtStart := time.Now()
		var res any
		err := c.Err()
		if err == nil {
			res, err = stmt.Process(e.c, e, nil)
		}
		out = append(out, Response{Time: time.Since(stmtStart), Result: res, Err: err})

		if err != nil {
			stmtErr.Inc()
			log.Debugf("statement %d (%s) failed: %v", i, stmt, err)
		} else {
			stmtOK.Inc()
		}

		if e.cancelled || (err != nil && (e.stopOnError || c.Err() != nil)) {
			return e.abort(out, len(stmts)), nil
		}
	}

	if !write {
		_ = txn.Cancel()
		batchReadOnly.Inc()
		return out, nil
	}

	if err := txn.Commit(c); err != nil {
		log.Warningf("commit of transaction %s failed: %v", txn.ID(), err)
		batchFailed.Inc()
		for i := range out {
			if out[i].Err == nil {
				out[i].Result = nil
				out[i].Err = fmt.Errorf("%w: %w", ErrCommitFailed, err)
			}
		}
		return out, nil
	}
	batchCommitted.Inc()
	return out, nil
}

// abort cancels the transaction. out holds the responses up to and including
// the terminating statement, total is the size of the batch.
func (e *Executor) abort(out []Response, total int) []Response {
	_ = e.txn.Cancel()
	batchCancelled.Inc()
	log.Debugf("transaction %s cancelled after statement %d of %d", e.txn.ID(), len(out), total)

	last := len(out) - 1
	for i := range out[:last] {
		out[i].Result = nil
		out[i].Err = ErrQueryCancelled
	}
	for len(out) < total {
		out = append(out, Response{Err: ErrQueryNotExecuted})
	}
	return out
}

package ctx

import (
	"context"
	"errors"
	"maps"

	"github.com/ValentinKolb/dQL/lib/iam"
)

// ErrFrozen is returned when a frozen Context is modified.
var ErrFrozen = errors.New("context is frozen")

// Context is one node of the execution scope. Lookups walk from the node to
// its parents, so a child sees everything its parents bound unless it
// overrides it. Once frozen a node never changes; statements derive new
// children instead of modifying the scope they were given.
//
// Context implements context.Context by embedding the Go context it was
// derived from, so it can be handed directly to blocking calls.
type Context struct {
	context.Context

	parent *Context
	vars   map[string]any
	auth   *iam.Auth
	ns     *string
	db     *string
	frozen bool
}

// Background returns an empty root Context.
func Background() *Context {
	return New(context.Background())
}

// New returns an empty root Context carrying the cancellation and deadline
// of parent.
func New(parent context.Context) *Context {
	if parent == nil {
		parent = context.Background()
	}
	return &Context{Context: parent}
}

// Child returns a new mutable Context linked to c.
func (c *Context) Child() *Context {
	return &Context{Context: c.Context, parent: c}
}

// WithCancel returns a child whose Go context is cancelled by the returned
// function.
func (c *Context) WithCancel() (*Context, context.CancelFunc) {
	goCtx, cancel := context.WithCancel(c.Context)
	return &Context{Context: goCtx, parent: c}, cancel
}

// Freeze marks c as immutable and returns it.
func (c *Context) Freeze() *Context {
	c.frozen = true
	return c
}

// Frozen reports whether c was frozen.
func (c *Context) Frozen() bool { return c.frozen }

// Parent returns the parent node, nil for a root.
func (c *Context) Parent() *Context { return c.parent }

// Bind sets a variable on this node.
func (c *Context) Bind(name string, value any) error {
	if c.frozen {
		return ErrFrozen
	}
	if c.vars == nil {
		c.vars = make(map[string]any)
	}
	c.vars[name] = value
	return nil
}

// SetAuth sets the identity on this node.
func (c *Context) SetAuth(a *iam.Auth) error {
	if c.frozen {
		return ErrFrozen
	}
	c.auth = a
	return nil
}

// SetNS sets the selected namespace on this node.
func (c *Context) SetNS(ns string) error {
	if c.frozen {
		return ErrFrozen
	}
	c.ns = &ns
	return nil
}

// SetDB sets the selected database on this node.
func (c *Context) SetDB(db string) error {
	if c.frozen {
		return ErrFrozen
	}
	c.db = &db
	return nil
}

// Var returns the closest binding of name.
func (c *Context) Var(name string) (any, bool) {
	for n := c; n != nil; n = n.parent {
		if v, ok := n.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Vars returns all visible bindings, children overriding parents.
func (c *Context) Vars() map[string]any {
	var chain []*Context
	for n := c; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, chain[i].vars)
	}
	return out
}

// Auth returns the closest identity, nil if none was set.
func (c *Context) Auth() *iam.Auth {
	for n := c; n != nil; n = n.parent {
		if n.auth != nil {
			return n.auth
		}
	}
	return nil
}

// NS returns the closest selected namespace.
func (c *Context) NS() string {
	for n := c; n != nil; n = n.parent {
		if n.ns != nil {
			return *n.ns
		}
	}
	return ""
}

// DB returns the closest selected database.
func (c *Context) DB() string {
	for n := c; n != nil; n = n.parent {
		if n.db != nil {
			return *n.db
		}
	}
	return ""
}

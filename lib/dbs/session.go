package dbs

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/iam"
)

// Session describes who executes a request and where. Sessions are values;
// the With methods return modified copies.
type Session struct {
	auth   *iam.Auth
	ns     string
	db     string
	id     string
	ip     string
	origin string
}

// NewSession returns a session for auth without a selected namespace or
// database. A nil auth is unauthenticated.
func NewSession(auth *iam.Auth) *Session {
	if auth == nil {
		auth = iam.None()
	}
	return &Session{auth: auth}
}

// WithNS returns a copy of s with namespace ns selected.
func (s *Session) WithNS(ns string) *Session {
	c := *s
	c.ns = ns
	return &c
}

// WithDB returns a copy of s with database db selected.
func (s *Session) WithDB(db string) *Session {
	c := *s
	c.db = db
	return &c
}

// WithOrigin returns a copy of s with the connection details set.
func (s *Session) WithOrigin(id, ip, origin string) *Session {
	c := *s
	c.id, c.ip, c.origin = id, ip, origin
	return &c
}

func (s *Session) Auth() *iam.Auth   { return s.auth }
func (s *Session) Namespace() string { return s.ns }
func (s *Session) Database() string  { return s.db }
func (s *Session) ID() string        { return s.id }
func (s *Session) IP() string        { return s.ip }
func (s *Session) Origin() string    { return s.origin }

// Options returns the execution options of the session.
func (s *Session) Options() Options {
	return Options{Auth: s.auth, NS: s.ns, DB: s.db}
}

// Context returns a frozen child of parent carrying the identity, the
// selection and a $session variable describing the connection.
func (s *Session) Context(parent *ctx.Context) *ctx.Context {
	c := parent.Child()
	// c is a fresh node, none of the setters can fail
	_ = c.SetAuth(s.auth)
	_ = c.SetNS(s.ns)
	_ = c.SetDB(s.db)
	_ = c.Bind("session", map[string]any{
		"id":     s.id,
		"ip":     s.ip,
		"origin": s.origin,
		"ns":     s.ns,
		"db":     s.db,
	})
	return c.Freeze()
}

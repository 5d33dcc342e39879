package iam

import (
	"errors"
	"fmt"
)

// Level is the scope an identity is authenticated for.
type Level uint8

const (
	LevelNo Level = iota // not authenticated
	LevelDB              // one database of one namespace
	LevelNS              // every database of one namespace
	LevelKV              // everything (root)
)

func (l Level) String() string {
	switch l {
	case LevelNo:
		return "NO"
	case LevelDB:
		return "DB"
	case LevelNS:
		return "NS"
	case LevelKV:
		return "KV"
	default:
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
}

// ErrNotAllowed is returned when an identity selects a namespace or database
// outside of its scope.
var ErrNotAllowed = errors.New("iam: not allowed")

// Auth is a resolved identity. NS and DB are only set for the levels that
// are bound to them. An Auth is immutable.
type Auth struct {
	level Level
	ns    string
	db    string
}

// Root returns an identity with access to everything.
func Root() *Auth { return &Auth{level: LevelKV} }

// Namespace returns an identity with access to every database of ns.
func Namespace(ns string) *Auth { return &Auth{level: LevelNS, ns: ns} }

// Database returns an identity with access to database db of namespace ns.
func Database(ns, db string) *Auth { return &Auth{level: LevelDB, ns: ns, db: db} }

// None returns an unauthenticated identity.
func None() *Auth { return &Auth{level: LevelNo} }

// Level returns the level of the identity. A nil Auth is unauthenticated.
func (a *Auth) Level() Level {
	if a == nil {
		return LevelNo
	}
	return a.level
}

// NS returns the namespace the identity is bound to ("" for LevelKV).
func (a *Auth) NS() string {
	if a == nil {
		return ""
	}
	return a.ns
}

// DB returns the database the identity is bound to (only LevelDB).
func (a *Auth) DB() string {
	if a == nil {
		return ""
	}
	return a.db
}

// CheckNamespace returns ErrNotAllowed if the identity may not use ns.
func (a *Auth) CheckNamespace(ns string) error {
	switch a.Level() {
	case LevelKV:
		return nil
	case LevelNS, LevelDB:
		if a.ns == ns {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not use namespace %q", ErrNotAllowed, a, ns)
}

// CheckDatabase returns ErrNotAllowed if the identity may not use db in ns.
func (a *Auth) CheckDatabase(ns, db string) error {
	if err := a.CheckNamespace(ns); err != nil {
		return err
	}
	if a.Level() == LevelDB && a.db != db {
		return fmt.Errorf("%w: %s may not use database %q", ErrNotAllowed, a, db)
	}
	return nil
}

func (a *Auth) String() string {
	switch a.Level() {
	case LevelNS:
		return fmt.Sprintf("NS(%s)", a.ns)
	case LevelDB:
		return fmt.Sprintf("DB(%s/%s)", a.ns, a.db)
	default:
		return a.Level().String()
	}
}

package sql

import (
	"errors"
	"strings"

	"github.com/ValentinKolb/dQL/lib/dbs"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("sql")

var (
	// ErrUndefinedParam is returned when a statement references a variable
	// that is not bound.
	ErrUndefinedParam = errors.New("undefined parameter")

	// ErrRecordExists is returned by CREATE for an id that is taken.
	ErrRecordExists = errors.New("record already exists")

	// ErrInvalidContent is returned by CREATE when the content is not an
	// object.
	ErrInvalidContent = errors.New("record content must be an object")
)

// Statement is one of the statements of the language: *UseStatement,
// *LetStatement, *ReturnStatement, *CreateStatement, *SelectStatement,
// *DeleteStatement or *CancelStatement. String returns the canonical text,
// which parses back into an equal statement.
type Statement interface {
	dbs.Statement
	statement()
}

func (*UseStatement) statement()    {}
func (*LetStatement) statement()    {}
func (*ReturnStatement) statement() {}
func (*CreateStatement) statement() {}
func (*SelectStatement) statement() {}
func (*DeleteStatement) statement() {}
func (*CancelStatement) statement() {}

// Query is a parsed batch of statements.
type Query []Statement

// Statements returns the statements for execution.
func (q Query) Statements() []dbs.Statement {
	out := make([]dbs.Statement, len(q))
	for i, s := range q {
		out[i] = s
	}
	return out
}

// Writeable reports whether any statement may write.
func (q Query) Writeable() bool {
	for _, s := range q {
		if s.Writeable() {
			return true
		}
	}
	return false
}

func (q Query) String() string {
	var b strings.Builder
	for i, s := range q {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.String())
		b.WriteByte(';')
	}
	return b.String()
}

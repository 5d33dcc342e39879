package sql

import (
	"github.com/ValentinKolb/dQL/lib/ctx"
	"github.com/ValentinKolb/dQL/lib/dbs"
)

// CancelStatement discards every change of the batch:
// CANCEL [TRANSACTION].
type CancelStatement struct{}

func (*CancelStatement) String() string { return "CANCEL" }

func (*CancelStatement) Writeable() bool { return false }

func (*CancelStatement) Process(_ *ctx.Context, exe *dbs.Executor, _ any) (any, error) {
	exe.Cancel()
	return nil, nil
}

func parseCancel(i string) (string, *CancelStatement, error) {
	i, err := expectKeyword(i, "CANCEL")
	if err != nil {
		return i, nil, err
	}
	if rest, err := shouldbeSpace(i); err == nil {
		if rest, ok := keyword(rest, "TRANSACTION"); ok {
			return rest, &CancelStatement{}, nil
		}
	}
	return i, &CancelStatement{}, nil
}

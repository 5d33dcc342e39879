package dbs

import "github.com/ValentinKolb/dQL/lib/iam"

// Options are the per-execution settings of a batch. The Executor works on
// its own copy; USE changes that copy for the following statements only.
type Options struct {
	Auth *iam.Auth
	NS   string
	DB   string
}

// NeedsNS returns ErrNsEmpty if no namespace is selected.
func (o Options) NeedsNS() error {
	if o.NS == "" {
		return ErrNsEmpty
	}
	return nil
}

// NeedsDB returns ErrNsEmpty or ErrDbEmpty if either is not selected.
func (o Options) NeedsDB() error {
	if err := o.NeedsNS(); err != nil {
		return err
	}
	if o.DB == "" {
		return ErrDbEmpty
	}
	return nil
}

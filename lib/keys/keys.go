package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dQL/lib/store"
)

// Record keys have the layout
//
//	/*{ns}\x00*{db}\x00*{tb}\x00*{id}\x00
//
// so that all records of a table share the table prefix and sort by id.

const (
	root = "/"
	part = '*'
	term = '\x00'
)

// ErrInvalidName is returned for empty names and names containing a NUL byte.
var ErrInvalidName = errors.New("invalid key name")

// ErrInvalidKey is returned when a key does not have the record layout.
var ErrInvalidKey = errors.New("invalid record key")

func check(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidName, kind)
	}
	if strings.IndexByte(name, term) >= 0 {
		return fmt.Errorf("%w: %s %q contains a NUL byte", ErrInvalidName, kind, name)
	}
	return nil
}

func encode(parts ...string) []byte {
	n := len(root)
	for _, p := range parts {
		n += len(p) + 2
	}
	b := make([]byte, 0, n)
	b = append(b, root...)
	for _, p := range parts {
		b = append(b, part)
		b = append(b, p...)
		b = append(b, term)
	}
	return b
}

// Table returns the prefix shared by all records of table tb.
func Table(ns, db, tb string) ([]byte, error) {
	for _, c := range [...][2]string{{"namespace", ns}, {"database", db}, {"table", tb}} {
		if err := check(c[0], c[1]); err != nil {
			return nil, err
		}
	}
	return encode(ns, db, tb), nil
}

// TableRange returns the key range covering all records of table tb.
func TableRange(ns, db, tb string) (store.Range, error) {
	prefix, err := Table(ns, db, tb)
	if err != nil {
		return store.Range{}, err
	}
	return store.PrefixRange(string(prefix)), nil
}

// Record returns the key of record id in table tb.
func Record(ns, db, tb, id string) ([]byte, error) {
	prefix, err := Table(ns, db, tb)
	if err != nil {
		return nil, err
	}
	if err := check("id", id); err != nil {
		return nil, err
	}
	b := append(prefix, part)
	b = append(b, id...)
	return append(b, term), nil
}

// RecordKey is a decoded record key.
type RecordKey struct {
	NS, DB, TB, ID string
}

// Decode splits a record key into its parts.
func Decode(key []byte) (RecordKey, error) {
	s := string(key)
	if !strings.HasPrefix(s, root) {
		return RecordKey{}, fmt.Errorf("%w: missing root", ErrInvalidKey)
	}
	s = s[len(root):]

	var parts [4]string
	for i := range parts {
		if len(s) == 0 || s[0] != part {
			return RecordKey{}, fmt.Errorf("%w: part %d has no marker", ErrInvalidKey, i)
		}
		end := strings.IndexByte(s, term)
		if end < 0 {
			return RecordKey{}, fmt.Errorf("%w: part %d is not terminated", ErrInvalidKey, i)
		}
		parts[i] = s[1:end]
		s = s[end+1:]
	}
	if s != "" {
		return RecordKey{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidKey, len(s))
	}
	return RecordKey{NS: parts[0], DB: parts[1], TB: parts[2], ID: parts[3]}, nil
}

package dbs

import (
	"encoding/json"

	"github.com/ValentinKolb/dQL/lib/ctx"
)

// Variables are request parameters made visible to the statements as
// $name.
type Variables map[string]any

// Attach returns a mutable child of parent with all variables bound.
func (v Variables) Attach(parent *ctx.Context) (*ctx.Context, error) {
	c := parent.Child()
	for name, value := range v {
		if err := c.Bind(name, value); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ParseVariables converts name=value pairs into variables. Values that are
// valid JSON are decoded, everything else is kept as a string.
func ParseVariables(pairs map[string]string) Variables {
	vars := make(Variables, len(pairs))
	for name, raw := range pairs {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}
	return vars
}

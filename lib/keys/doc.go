// Package keys encodes the storage keys of records.
package keys

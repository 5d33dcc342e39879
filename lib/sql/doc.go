// Package sql parses and processes statements.
//
// The statement set is closed: USE, LET, RETURN, CREATE, SELECT, DELETE and
// CANCEL. Keywords are case-insensitive and must be followed by
// whitespace; statements are separated by semicolons. Parse is
// all-or-nothing and reports the line and column of the first error.
//
// Records are JSON documents stored under keys.Record in the selected
// namespace and database. Every document carries its own reference in the
// id field, for example "person:tobie".
package sql

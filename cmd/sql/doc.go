// Package sql implements the sql command.
package sql

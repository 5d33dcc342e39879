// Package lock implements the lock commands.
package lock

// Package internal holds the entry and tombstone types of the maple engine.
package internal

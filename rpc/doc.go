// Package rpc exposes a datastore over HTTP.
//
// The server package executes queries sent as plain text and answers with a
// JSON array of statement results. The client package sends queries to one
// or more servers. Shared configuration and wire types live in common.
package rpc

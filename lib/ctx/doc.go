// Package ctx provides the execution scope statements run in.
//
// A scope is a chain of Context nodes. The Datastore builds the root chain
// from the Go context, the session and the request variables and freezes
// it. During execution the Executor derives a new frozen child for every
// LET or USE, so earlier statements and concurrent readers keep seeing the
// scope they started with.
package ctx

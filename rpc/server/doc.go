// Package server serves a dql.Datastore over HTTP.
//
// Routes:
//
//	POST /sql      execute the query in the body, see common for headers
//	GET  /health   200 while the storage backend answers
//	GET  /info     backend name and engine metadata
//	GET  /metrics  metrics in the Prometheus text format
package server

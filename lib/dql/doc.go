// Package dql is the entry point of the database.
//
// A Datastore wraps one key-value backend (see kvs.New for the supported
// connection strings) and executes query text for a session:
//
//	ds, err := dql.New("memory")
//	...
//	sess := dbs.NewSession(iam.Root()).WithNS("test").WithDB("app")
//	res, err := ds.Execute(ctx, `CREATE person:tobie CONTENT {"name":"Tobie"}`, sess, nil)
//
// Every call runs in its own transaction and returns one dbs.Response per
// statement.
package dql

// Package iam holds the identities statements are executed with. Session
// management and authentication itself happen outside of dQL; this package
// only describes the resolved result and checks namespace and database
// selections against it.
package iam

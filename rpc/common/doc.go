// Package common holds the configuration and wire types shared by the query
// server and client.
//
// A query is sent as the body of POST /sql. The NS and DB headers select the
// namespace and database, URL query parameters are bound as variables
// (decoded as JSON when possible). The reply is a JSON array with one
// Response per statement. Requests that cannot be executed at all (parse
// errors, an unavailable backend) are answered with an ErrorBody.
package common

package common

import "encoding/json"

// Paths served by the query endpoint.
const (
	PathSQL     = "/sql"
	PathHealth  = "/health"
	PathInfo    = "/info"
	PathMetrics = "/metrics"
)

// Request headers selecting the namespace and database of a query.
// Variables are passed as URL query parameters.
const (
	HeaderNS = "NS"
	HeaderDB = "DB"
)

// Response is the wire form of one statement result, see dbs.Response.
type Response struct {
	Time   string          `json:"time"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// ErrorBody is returned with every non 200 status.
type ErrorBody struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

package dbs

import (
	"encoding/json"
	"time"
)

// Status values of a Response.
const (
	StatusOK  = "OK"
	StatusErr = "ERR"
)

// Response is the outcome of one statement.
type Response struct {
	Time   time.Duration
	Result any
	Err    error
}

// Status returns StatusOK or StatusErr.
func (r Response) Status() string {
	if r.Err != nil {
		return StatusErr
	}
	return StatusOK
}

// Output returns the result or the error of the statement.
func (r Response) Output() (any, error) {
	return r.Result, r.Err
}

type okJSON struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Result any    `json:"result"`
}

type errJSON struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// MarshalJSON encodes the response as
//
//	{"time":"1.2ms","status":"OK","result":...}
//	{"time":"1.2ms","status":"ERR","detail":"..."}
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(errJSON{Time: r.Time.String(), Status: StatusErr, Detail: r.Err.Error()})
	}
	return json.Marshal(okJSON{Time: r.Time.String(), Status: StatusOK, Result: r.Result})
}

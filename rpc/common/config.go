package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Formatting helpers
// --------------------------------------------------------------------------

type section struct {
	sb strings.Builder
}

func (s *section) add(title string) {
	s.sb.WriteString("\n")
	s.sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func (s *section) field(name, value string) {
	s.sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerConfig holds the settings of the HTTP query endpoint.
type ServerConfig struct {
	// Endpoint is the address the server listens on (e.g. 0.0.0.0:8000)
	Endpoint string

	// Timeout bounds the execution of a single request (0 for no limit)
	Timeout time.Duration

	// MaxBodyBytes limits the size of a query
	MaxBodyBytes int64

	// LogRequests logs every request at debug level
	LogRequests bool
}

// DefaultMaxBodyBytes is used when ServerConfig.MaxBodyBytes is 0
const DefaultMaxBodyBytes = 4 << 20

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var s section
	s.add("HTTP Server")
	s.field("Endpoint", c.Endpoint)
	s.field("Timeout", c.Timeout.String())
	s.field("Max Body Size", fmt.Sprintf("%d bytes", c.MaxBodyBytes))
	s.field("Log Requests", strconv.FormatBool(c.LogRequests))
	return s.sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientConfig holds the settings of a query client.
type ClientConfig struct {
	// Endpoints are base URLs of servers, used round robin
	Endpoints []string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// RetryCount is the number of attempts for requests that failed before
	// reaching a server
	RetryCount int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var s section
	s.add("Client Configuration")
	s.field("Timeout", c.Timeout.String())
	s.field("Retry Count", strconv.Itoa(c.RetryCount))

	s.add("Endpoints")
	for i, endpoint := range c.Endpoints {
		s.field(strconv.Itoa(i), endpoint)
	}
	return s.sb.String()
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("rpc")

// ErrNoEndpoints is returned by NewClient for an empty endpoint list
var ErrNoEndpoints = errors.New("no endpoints configured")

// StatusError is returned when the server answers with a status other than 200.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.Code, e.Detail)
}

// Client sends queries to one or more servers. Endpoints are used round
// robin, requests that fail before reaching a server are retried on the
// next endpoint.
type Client struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// NewClient parses the endpoints of config and creates a client.
func NewClient(config common.ClientConfig) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return nil, err
		}
		parsedURLs[i] = parsedURL
	}

	retries := config.RetryCount
	if retries < 1 {
		retries = 1
	}

	return &Client{
		serverURLs: parsedURLs,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		},
		retryCount: retries,
	}, nil
}

// Query executes text with the given namespace, database and variables and
// returns one Response per statement.
func (c *Client) Query(ctx context.Context, text, ns, db string, vars map[string]string) ([]common.Response, error) {
	query := url.Values{}
	for name, value := range vars {
		query.Set(name, value)
	}

	body, err := c.retry(ctx, func() ([]byte, error) {
		return c.send(ctx, text, ns, db, query)
	})
	if err != nil {
		return nil, err
	}

	var res []common.Response
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return res, nil
}

// Health returns nil if an endpoint reports a healthy backend.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.retry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.next().JoinPath(common.PathHealth).String(), nil)
		if err != nil {
			return nil, err
		}
		return c.do(req)
	})
	return err
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// next selects the next server via round-robin
func (c *Client) next() *url.URL {
	idx := atomic.AddUint32(&c.counter, 1) % uint32(len(c.serverURLs))
	return c.serverURLs[idx]
}

// retry runs fn up to retryCount times. Answers of a server are final.
func (c *Client) retry(ctx context.Context, fn func() ([]byte, error)) (body []byte, err error) {
	for i := 0; i < c.retryCount; i++ {
		body, err = fn()
		var serr *StatusError
		if err == nil || errors.As(err, &serr) || ctx.Err() != nil {
			return body, err
		}
		log.Debugf("attempt %d failed: %v", i+1, err)
	}
	return nil, err
}

func (c *Client) send(ctx context.Context, text, ns, db string, query url.Values) ([]byte, error) {
	u := c.next().JoinPath(common.PathSQL)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	if ns != "" {
		req.Header.Set(common.HeaderNS, ns)
	}
	if db != "" {
		req.Header.Set(common.HeaderDB, db)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Errorf("failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var eb common.ErrorBody
		if json.Unmarshal(body, &eb) != nil || eb.Detail == "" {
			eb.Detail = string(bytes.TrimSpace(body))
		}
		return nil, &StatusError{Code: resp.StatusCode, Detail: eb.Detail}
	}
	return body, nil
}

// Package client is an HTTP client for the query server in package server.
//
// Usage:
//
//	c, err := client.NewClient(common.ClientConfig{
//		Endpoints:  []string{"localhost:8000", "localhost:8001"},
//		Timeout:    5 * time.Second,
//		RetryCount: 3,
//	})
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	res, err := c.Query(ctx, "SELECT * FROM person;", "test", "app", nil)
package client

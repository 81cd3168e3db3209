// Package client implements a typed HTTP client of the dashboard API.
//
// Every method unwraps the {success, data, error} envelope. A response with success=false
// becomes an *APIError carrying the HTTP status and the server's message:
//
//	c, _ := client.New(common.ClientConfig{Endpoint: "localhost:8080", RetryCount: 3})
//	defer c.Close()
//
//	user, err := c.CreateUser(ctx, "Alice")
//	if client.StatusOf(err) == http.StatusBadRequest { ... }
//
// GET requests are retried up to RetryCount times on transport errors. Writes are sent
// once since the server does not deduplicate them.
//
// The trace context of ctx is propagated with the global otel propagator.
package client

// Package sinks holds the thin HTTP clients that deliver a submission to
// the external services. Each client is a single request/response: no
// retries, no circuit breaking, no payload semantics beyond field renaming.
package sinks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"screenline/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Response is the per-sink success result: the identifier the remote
// service assigned, when it assigns one.
type Response struct {
	ID string
}

// Sink delivers one payload to one external service.
type Sink interface {
	Name() string
	Send(ctx context.Context, p domain.SubmissionPayload) (Response, error)
}

func newClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}

// checkStatus converts a non-2xx response into an error carrying a bounded
// slice of the remote body.
func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}

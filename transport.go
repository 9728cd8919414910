package honeybadger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker/v2"

	"github.com/fussybeaver/honeybadger-go/notice"
)

// maxResponseBodyRead limits how much of a collector response we read for
// notice ids and error messages.
const maxResponseBodyRead = 4096

// NotifyResult describes an accepted notice.
type NotifyResult struct {
	// ID is the collector-assigned notice id, or a synthetic local reference
	// when the response carried none.
	ID         string
	StatusCode int
}

// Send delivers a built notice to the collector in exactly one attempt.
//
// The attempt runs under the configured timeout layered onto ctx; caller
// cancellation abandons it, and an abandoned notice may or may not have
// reached the collector. The response is classified: 2xx returns a
// NotifyResult with the notice id, everything else returns a *Error whose
// code says whether the collector refused the payload (rejected_*) or
// delivery itself is in doubt (transport_*, timeout).
func (c *Client) Send(ctx context.Context, n *notice.Notice) (*NotifyResult, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, newError(ErrCodeBuildEncodeFailed, "failed to encode notice", err)
	}
	body, encoding, err := c.encodeBody(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.noticesURL, bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrCodeBuildInvalidConfig, "failed to create collector request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.config.APIKey.Unmask())
	req.Header.Set("User-Agent", c.userAgent)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := c.do(req)
	if err != nil {
		derr := classifyTransportError(err)
		c.logger.Warn("notice delivery failed",
			"code", string(derr.Code),
			"error", err.Error(),
		)
		return nil, derr
	}
	defer resp.Body.Close()

	// Read response body (bounded; only ids and error messages live here).
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		id := extractNoticeID(respBody)
		if id == "" {
			id = c.syntheticID(resp.StatusCode)
		}
		c.logger.Info("notice delivered",
			"status", resp.StatusCode,
			"notice_id", id,
			"class", n.Error.Class,
		)
		return &NotifyResult{ID: id, StatusCode: resp.StatusCode}, nil
	}

	derr := errorForResponse(resp.StatusCode, respBody)
	c.logger.Warn("notice not accepted",
		"status", resp.StatusCode,
		"code", string(derr.Code),
		"class", n.Error.Class,
	)
	return nil, derr
}

// do executes the request, through the circuit breaker when one is
// configured. Only transport-level failures count against the breaker; any
// HTTP response is a success from its point of view.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.breaker != nil {
		return c.breaker.Execute(func() (*http.Response, error) {
			return c.http.Do(req)
		})
	}
	return c.http.Do(req)
}

// newBreaker builds the opt-in transport circuit breaker: trips after more
// than five consecutive transport failures, fails fast for 30 seconds, then
// lets a single probe request through.
func newBreaker() *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "honeybadger",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// encodeBody compresses the payload when compression is enabled.
func (c *Client) encodeBody(payload []byte) ([]byte, string, error) {
	if !c.config.Compression {
		return payload, "", nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, "", newError(ErrCodeBuildEncodeFailed, "failed to compress notice", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", newError(ErrCodeBuildEncodeFailed, "failed to compress notice", err)
	}
	return buf.Bytes(), "gzip", nil
}

// classifyTransportError maps a failed request (no HTTP response) to an
// *Error. The configured deadline maps to timeout, caller cancellation to
// canceled, an open breaker to transport_circuit_open, and everything else
// to transport_connection.
func classifyTransportError(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrCodeTimeout, "delivery timed out", err)
	case errors.Is(err, context.Canceled):
		return newError(ErrCodeCanceled, "delivery canceled", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return newError(ErrCodeTransportCircuitOpen, "collector circuit breaker open", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(ErrCodeTimeout, "delivery timed out", err)
	}
	return newError(ErrCodeTransportConnection, "connection to collector failed", err)
}

// errorForResponse maps a non-2xx collector response to an *Error carrying
// the status and the (bounded) body verbatim.
func errorForResponse(status int, body []byte) *Error {
	code := codeForStatus(status)

	var msg string
	switch code {
	case ErrCodeRejectedRedirect:
		msg = "collector responded with a redirect; redirects are not followed"
	case ErrCodeRejectedUnauthorized:
		msg = "API key is invalid or the account is inactive"
	case ErrCodeRejectedUnprocessable:
		msg = "collector could not process the notice payload"
	case ErrCodeRejectedRateLimited:
		msg = "project rate limit exceeded"
	case ErrCodeRejectedClient:
		msg = "collector rejected the notice"
	case ErrCodeTransportServer:
		msg = "collector server error"
	default:
		msg = "unexpected response status"
	}
	if m := extractErrorMessage(body); m != "" {
		msg = fmt.Sprintf("%s: %s", msg, m)
	}

	return &Error{
		Code:       code,
		Message:    msg,
		StatusCode: status,
		Body:       string(body),
	}
}

// extractNoticeID pulls the collector-assigned id from a 2xx response body.
// Bodies that are not the expected JSON shape simply yield no id.
func extractNoticeID(body []byte) string {
	var ack struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return ""
	}
	return ack.ID
}

// extractErrorMessage pulls the collector's error text from a rejection
// body.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Errors string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Errors
}

// syntheticID creates a traceable local reference when a 2xx response
// carries no notice id.
//
// Format: local-{status}-{timestamp}-{uuid_short}
// Example: local-201-1706745600-a1b2c3d4
func (c *Client) syntheticID(statusCode int) string {
	return fmt.Sprintf("local-%d-%d-%s",
		statusCode,
		c.clock.Now().Unix(),
		uuid.New().String()[:8],
	)
}

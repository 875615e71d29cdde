package retryhttp

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RetriesExhaustedError is returned once every attempt allowed by the policy
// has failed.  StatusCode is zero when the last attempt failed before a
// response was received.
type RetriesExhaustedError struct {
	StatusCode int
	Attempts   int
	Cause      error
}

var _ error = (*RetriesExhaustedError)(nil)

func (e *RetriesExhaustedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed after %d attempts (last status: %d)", e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("request failed after %d attempts: %s", e.Attempts, e.Cause)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Cause
}

type retryableStatusError struct {
	StatusCode int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status code: %d", e.StatusCode)
}

// Transport is an http.RoundTripper that retries transport errors and
// retryable status codes according to Policy.
type Transport struct {
	Base   http.RoundTripper
	Policy Policy
	Logger *zap.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := 0
	lastStatus := 0
	var resp *http.Response

	op := func() error {
		attempts++

		attemptReq := req
		if attempts > 1 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return backoff.Permanent(errors.New("request body cannot be replayed"))
			}

			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(errors.Wrap(err, "failed to replay request body"))
			}

			attemptReq = req.Clone(req.Context())
			attemptReq.Body = body
		}

		res, err := base.RoundTrip(attemptReq)
		if err != nil {
			lastStatus = 0
			return err
		}

		if t.Policy.IsRetryableStatus(res.StatusCode) {
			lastStatus = res.StatusCode
			_, _ = io.Copy(io.Discard, res.Body)
			_ = res.Body.Close()
			return &retryableStatusError{StatusCode: res.StatusCode}
		}

		resp = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("request failed, retrying",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Int("maxAttempts", t.Policy.MaxAttempts),
			zap.Duration("wait", wait))
	}

	err := backoff.RetryNotify(op, t.Policy.newBackOff(req.Context()), notify)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.Debug("request failed, exhausted retries",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err),
			zap.Int("attempts", attempts))

		return nil, &RetriesExhaustedError{
			StatusCode: lastStatus,
			Attempts:   attempts,
			Cause:      err,
		}
	}

	return resp, nil
}

type ClientOptions struct {
	Logger *zap.Logger
	Policy Policy

	// ResponseTimeout bounds the wait for response headers of a single
	// attempt.  Zero disables it.
	ResponseTimeout time.Duration
}

// NewClient builds the shared HTTP client used for every outbound call.
func NewClient(opts *ClientOptions) (*http.Client, error) {
	if opts == nil {
		opts = &ClientOptions{Policy: DefaultPolicy()}
	}

	err := opts.Policy.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid retry policy")
	}

	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	baseTransport.ResponseHeaderTimeout = opts.ResponseTimeout

	return &http.Client{
		Transport: &Transport{
			Base:   baseTransport,
			Policy: opts.Policy,
			Logger: opts.Logger,
		},
	}, nil
}

package providers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"litscout/internal/errors"
)

// RetryPolicy implements the source adapter retry contract (§4.1): up to
// three attempts with exponential backoff from 2s to 8s on transient
// network errors and 5xx responses; on a 429 response, wait at least ten
// seconds and allow exactly one further retry, independent of the
// exponential schedule.
type RetryPolicy struct {
	source     string
	logger     *slog.Logger
	classifier *errors.ErrorClassifier
	executor   *errors.RetryExecutor
}

// NewRetryPolicy builds the shared retry policy for one named source.
func NewRetryPolicy(source string, logger *slog.Logger) *RetryPolicy {
	classifier := errors.NewErrorClassifier()
	return &RetryPolicy{
		source:     source,
		logger:     logger,
		classifier: classifier,
		executor: errors.NewRetryExecutor(
			errors.WithExponentialBackoff(3, 2*time.Second, 8*time.Second),
			classifier,
			logger,
		),
	}
}

// Do runs fn, retrying per the policy above. httpStatus, when non-zero,
// lets the caller report the status code of the last response so rate
// limits are classified correctly; pass 0 when the failure never reached
// an HTTP response (connection refused, timeout, and so on).
func (p *RetryPolicy) Do(ctx context.Context, fn func() (httpStatus int, err error)) error {
	rateLimited := false

	err := p.executor.Execute(ctx, p.source, func() error {
		status, err := fn()
		if err == nil {
			return nil
		}
		if status == http.StatusTooManyRequests {
			rateLimited = true
		}
		return p.classifier.ClassifyProviderError(p.source, err)
	})

	if err != nil && rateLimited {
		p.logger.Warn("source rate limited, backing off before final retry",
			slog.String("source", p.source))
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		status, retryErr := fn()
		if retryErr == nil {
			return nil
		}
		if status != 0 {
			return p.classifier.ClassifyProviderError(p.source, retryErr)
		}
		return retryErr
	}

	return err
}

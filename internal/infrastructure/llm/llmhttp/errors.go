package llmhttp

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/document-insights/internal/core/domain"
	"github.com/kirillkom/document-insights/internal/infrastructure/resilience"
)

// Classify tells the breaker which failures mean the model endpoint is
// unhealthy.
func Classify(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Classification{Retryable: true, CountsAsFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if isServerSideStatus(statusErr.StatusCode) {
			return resilience.Classification{Retryable: true, CountsAsFailure: true}
		}
		return resilience.Classification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, CountsAsFailure: true}
	}
	return resilience.Classification{CountsAsFailure: true}
}

// ToDomain attaches the domain kind matching a transport failure.
func ToDomain(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrModelTimeout, operation, err)
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrModelUnavailable, operation, err)
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		case statusErr.StatusCode == http.StatusRequestTimeout || statusErr.StatusCode == http.StatusGatewayTimeout:
			return domain.WrapError(domain.ErrModelTimeout, operation, err)
		case isServerSideStatus(statusErr.StatusCode):
			return domain.WrapError(domain.ErrModelUnavailable, operation, err)
		default:
			return err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.WrapError(domain.ErrModelTimeout, operation, err)
		}
		return domain.WrapError(domain.ErrModelUnavailable, operation, err)
	}
	return err
}

func isServerSideStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}

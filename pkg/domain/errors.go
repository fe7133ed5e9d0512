package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorCategory string

const (
	ErrorCategoryConfiguration  ErrorCategory = "configuration"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryUpstream       ErrorCategory = "upstream"
	ErrorCategoryUnknownMetric  ErrorCategory = "unknown_metric"
	ErrorCategoryUnknownAction  ErrorCategory = "unknown_action"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration field: %s", e.Field)
}

type AuthFailureReason string

const (
	AuthFailureInvalidCredentials AuthFailureReason = "invalid_credentials"
	AuthFailureTokenExpired       AuthFailureReason = "token_expired"
	AuthFailureForbidden          AuthFailureReason = "forbidden"
)

type AuthenticationError struct {
	Reason AuthFailureReason
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %s", e.Reason, e.Err)
	}

	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

type NetworkFailureReason string

const (
	NetworkFailureUnreachable NetworkFailureReason = "unreachable"
	NetworkFailureDNS         NetworkFailureReason = "dns_failure"
	NetworkFailureTimeout     NetworkFailureReason = "timeout"
)

type NetworkError struct {
	Reason NetworkFailureReason
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure (%s): %s", e.Reason, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}

	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, body)
}

// IsAuthStatus reports whether a status code means the cached credential
// must be invalidated and authentication retried once.
func IsAuthStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// AuthReasonForStatus maps an observed auth status to the failure reason
// surfaced after the single re-authentication attempt also failed.
func AuthReasonForStatus(statusCode int) AuthFailureReason {
	if statusCode == http.StatusForbidden {
		return AuthFailureForbidden
	}

	return AuthFailureInvalidCredentials
}

type UnknownMetricError struct {
	Metric MetricType
	Known  []MetricType
}

func (e *UnknownMetricError) Error() string {
	known := make([]string, 0, len(e.Known))
	for _, m := range e.Known {
		known = append(known, string(m))
	}

	return fmt.Sprintf("unknown metric %q, valid metrics: %s", e.Metric, strings.Join(known, ", "))
}

type UnknownActionError struct {
	Action ActionType
	Known  []ActionType
}

func (e *UnknownActionError) Error() string {
	known := make([]string, 0, len(e.Known))
	for _, a := range e.Known {
		known = append(known, string(a))
	}

	return fmt.Sprintf("unknown action %q, valid actions: %s", e.Action, strings.Join(known, ", "))
}

// WrapTransportError classifies an error returned by an HTTP round trip into
// the network taxonomy. Errors that already carry a category pass through.
func WrapTransportError(err error) error {
	if err == nil {
		return nil
	}

	var authErr *AuthenticationError
	var upstreamErr *UpstreamError
	var netErr *NetworkError
	if errors.As(err, &authErr) || errors.As(err, &upstreamErr) || errors.As(err, &netErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Reason: NetworkFailureTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &NetworkError{Reason: NetworkFailureDNS, Err: err}
	}

	var timeoutErr net.Error
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &NetworkError{Reason: NetworkFailureTimeout, Err: err}
	}

	return &NetworkError{Reason: NetworkFailureUnreachable, Err: err}
}

// TestResultFromError converts any failure into the structured result
// TestConnection reports; no error crosses that boundary.
func TestResultFromError(err error) ConnectionTestResult {
	return ConnectionTestResult{
		Success:  false,
		Message:  err.Error(),
		Category: Categorize(err),
	}
}

// Categorize maps any error produced by the core into its taxonomy category.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var configErr *ConfigurationError
	if errors.As(err, &configErr) {
		return ErrorCategoryConfiguration
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return ErrorCategoryAuthentication
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return ErrorCategoryNetwork
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return ErrorCategoryUpstream
	}

	var metricErr *UnknownMetricError
	if errors.As(err, &metricErr) {
		return ErrorCategoryUnknownMetric
	}

	var actionErr *UnknownActionError
	if errors.As(err, &actionErr) {
		return ErrorCategoryUnknownAction
	}

	return ErrorCategoryUnknown
}

package domain

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{name: "configuration", err: &ConfigurationError{Field: "host"}, want: ErrorCategoryConfiguration},
		{name: "authentication", err: &AuthenticationError{Reason: AuthFailureForbidden}, want: ErrorCategoryAuthentication},
		{name: "network", err: &NetworkError{Reason: NetworkFailureTimeout, Err: errors.New("t/o")}, want: ErrorCategoryNetwork},
		{name: "upstream", err: &UpstreamError{StatusCode: 500}, want: ErrorCategoryUpstream},
		{name: "unknown metric", err: &UnknownMetricError{Metric: "x"}, want: ErrorCategoryUnknownMetric},
		{name: "unknown action", err: &UnknownActionError{Action: "x"}, want: ErrorCategoryUnknownAction},
		{name: "anything else", err: errors.New("mystery"), want: ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestWrapTransportError(t *testing.T) {
	t.Run("deadline maps to timeout", func(t *testing.T) {
		wrapped := WrapTransportError(context.DeadlineExceeded)

		var netErr *NetworkError
		require.ErrorAs(t, wrapped, &netErr)
		assert.Equal(t, NetworkFailureTimeout, netErr.Reason)
	})

	t.Run("dns failure", func(t *testing.T) {
		wrapped := WrapTransportError(&net.DNSError{Err: "no such host", Name: "radarr.local"})

		var netErr *NetworkError
		require.ErrorAs(t, wrapped, &netErr)
		assert.Equal(t, NetworkFailureDNS, netErr.Reason)
	})

	t.Run("categorized errors pass through", func(t *testing.T) {
		original := &AuthenticationError{Reason: AuthFailureTokenExpired}

		assert.Equal(t, error(original), WrapTransportError(original))
	})

	t.Run("anything else is unreachable", func(t *testing.T) {
		wrapped := WrapTransportError(errors.New("connection refused"))

		var netErr *NetworkError
		require.ErrorAs(t, wrapped, &netErr)
		assert.Equal(t, NetworkFailureUnreachable, netErr.Reason)
	})
}

func TestUpstreamErrorTruncatesBody(t *testing.T) {
	err := &UpstreamError{StatusCode: 502, Body: strings.Repeat("x", 500)}

	assert.LessOrEqual(t, len(err.Error()), 250)
}

func TestTestResultFromError(t *testing.T) {
	result := TestResultFromError(&AuthenticationError{Reason: AuthFailureInvalidCredentials})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorCategoryAuthentication, result.Category)
	assert.NotEmpty(t, result.Message)
}

func TestIntegrationConfigIdentity(t *testing.T) {
	base := IntegrationConfig{Type: "radarr", Host: "nas.local", Port: 7878, APIKey: "k1"}

	same := base
	differentKey := base
	differentKey.APIKey = "k2"
	differentHost := base
	differentHost.Host = "other.local"

	assert.Equal(t, base.Identity(), same.Identity())
	assert.NotEqual(t, base.Identity(), differentKey.Identity())
	assert.NotEqual(t, base.Identity(), differentHost.Identity())
	assert.True(t, strings.HasPrefix(base.Identity(), "radarr:"))
}

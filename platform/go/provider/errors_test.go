package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   Class
	}{
		{http.StatusInternalServerError, Transient},
		{http.StatusBadGateway, Transient},
		{http.StatusServiceUnavailable, Transient},
		{http.StatusTooManyRequests, Transient},
		{http.StatusRequestTimeout, Transient},
		{http.StatusBadRequest, Permanent},
		{http.StatusUnprocessableEntity, Permanent},
		{http.StatusPaymentRequired, Permanent},
		{http.StatusConflict, Permanent},
		{http.StatusUnauthorized, Permanent},
		{http.StatusFound, Unknown},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			require.Equal(t, tc.want, ClassForStatus(tc.status))
		})
	}
}

func TestFromStatusMarksConflictsAndRetryAfter(t *testing.T) {
	t.Parallel()

	conflict := FromStatus("dbhost", "create project", http.StatusConflict, nil, "name taken")
	require.True(t, IsAlreadyExists(conflict))
	require.Equal(t, Permanent, Classify(conflict))

	h := http.Header{}
	h.Set("Retry-After", "7")
	limited := FromStatus("dbhost", "get status", http.StatusTooManyRequests, h, "slow down")
	require.Equal(t, Transient, Classify(limited))
	require.Equal(t, 7*time.Second, RetryAfterOf(limited))

	missing := FromStatus("deployhost", "find project", http.StatusNotFound, nil, "")
	require.True(t, IsNotFound(missing))
}

func TestClassifyWrappedAndForeignErrors(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("step failed: %w", NewPermanent("dbhost", "run migration", errors.New("syntax error")))
	require.True(t, IsPermanent(wrapped))

	require.Equal(t, Unknown, Classify(errors.New("boom")))
	require.Equal(t, Transient, Classify(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	require.Equal(t, Class(""), Classify(nil))
}

func TestFromTransport(t *testing.T) {
	t.Parallel()

	require.Nil(t, FromTransport("dbhost", "op", nil))
	require.Equal(t, Transient, FromTransport("dbhost", "op", context.DeadlineExceeded).Class)
	require.Equal(t, Unknown, FromTransport("dbhost", "op", errors.New("weird")).Class)

	existing := NewPermanent("dbhost", "op", errors.New("bad"))
	require.Same(t, existing, FromTransport("dbhost", "other", existing))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := FromStatus("deployhost", "set env", http.StatusBadRequest, nil, "invalid key")
	require.Equal(t, "deployhost set env: permanent (status 400): invalid key", err.Error())
}

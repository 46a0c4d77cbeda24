package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindAuthRequired},
		{http.StatusForbidden, KindAuthRequired},
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, classify(tc.status, "").Kind, "status %d", tc.status)
	}
}

func TestClassifyByMessageText(t *testing.T) {
	// Some deployments answer 200 with an error body for missing resources.
	assert.Equal(t, KindNotFound, classify(http.StatusOK, "Attachment not found").Kind)
	assert.Equal(t, KindNotFound, classify(http.StatusOK, "no such file").Kind)
	assert.Equal(t, KindTransient, classify(http.StatusOK, "something broke").Kind)
}

func TestKindHelpersUnwrap(t *testing.T) {
	err := fmt.Errorf("poll cycle: %w", classify(http.StatusTooManyRequests, "slow down"))
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsRateLimited(fmt.Errorf("plain")))
}

package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitParam_DefaultsOnMissingOrInvalid(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/journal", nil)
	require.Equal(t, 20, limitParam(req, 20))

	req = httptest.NewRequest("GET", "/api/journal?limit=abc", nil)
	require.Equal(t, 20, limitParam(req, 20))

	req = httptest.NewRequest("GET", "/api/journal?limit=-5", nil)
	require.Equal(t, 20, limitParam(req, 20))
}

func TestLimitParam_UsesQueryValue(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/journal?limit=7", nil)
	require.Equal(t, 7, limitParam(req, 20))
}

func TestErrorHelpers_ProduceReadableMessages(t *testing.T) {
	require.Contains(t, errMissingField("message").Error(), "message")
	require.Contains(t, errBadValue("type").Error(), "type")
	require.Contains(t, errNotFound("thread").Error(), "thread")
	require.Contains(t, errNotConfigured("email").Error(), "email")
}

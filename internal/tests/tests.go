// Package tests holds assertion helpers shared by the handler and middleware
// suites.
package tests

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONResponse checks the recorded status code and compares the body
// with expected after marshaling it through the same wire shape.
func AssertJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, expectedStatus int, expected any) {
	t.Helper()

	require.Equal(t, expectedStatus, recorder.Code)

	expectedJSON, err := json.Marshal(expected)
	require.NoError(t, err)

	assert.JSONEq(t, string(expectedJSON), recorder.Body.String())
}

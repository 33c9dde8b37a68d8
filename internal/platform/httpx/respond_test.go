package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemUsesProblemMediaType(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusForbidden, "Forbidden", "role not permitted")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ProblemDetail{Type: "about:blank", Title: "Forbidden", Status: 403, Detail: "role not permitted"}, body)
}

func TestDecodeJSON(t *testing.T) {
	type input struct {
		Active *bool `json:"active"`
	}
	decode := func(body string) (input, error) {
		var in input
		err := DecodeJSON(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)), &in)
		return in, err
	}

	in, err := decode(`{"active":false}`)
	require.NoError(t, err)
	require.NotNil(t, in.Active)
	assert.False(t, *in.Active)

	_, err = decode(`{"active":true,"deleted_at":null}`)
	assert.Error(t, err)

	_, err = decode(`{"active":true}{"active":false}`)
	assert.Error(t, err)

	_, err = decode(``)
	assert.True(t, errors.Is(err, io.EOF))

	_, err = decode(`{"active":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
	assert.Error(t, err)
}

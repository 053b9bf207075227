package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ignite/mailevents/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestFail_MapsKindToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, fmt.Errorf("create: %w", apperr.New(apperr.KindConflict, "short code already in use")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, "CONFLICT", env.Error)
	assert.Equal(t, "short code already in use", env.Message)
	assert.Contains(t, env.TechnicalDetails, "create:")
}

func TestFail_UnclassifiedIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, errors.New("pq: relation does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error)
	assert.Equal(t, "An internal error occurred", env.Message)
}

func TestOK_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, "done", map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, "done", env.Message)
}

func TestDecode_BadJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{nope"))

	var dst map[string]any
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error)
}

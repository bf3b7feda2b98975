package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/demolauncher/pkg/engine"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

func TestClassify(t *testing.T) {
	blocked := &listing.Error{Op: "browse", URL: "https://x/", Err: listing.ErrNavigationBlocked}
	fetch := listing.FetchError("list", listing.ProtocolHTTP, "https://x/", errors.New("boom"))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantExit   int
	}{
		{"blocked", blocked, http.StatusForbidden, CodeNavigationBlocked, ExitInvalidArgument},
		{"fetch", fetch, http.StatusBadGateway, CodeFetchFailed, ExitExternalServiceUnavailable},
		{"history", listing.ErrHistoryEmpty, http.StatusConflict, CodeHistoryEmpty, ExitInvalidArgument},
		{"no source", navigator.ErrNoSource, http.StatusConflict, CodeNoSource, ExitInvalidArgument},
		{"not a folder", fmt.Errorf("x: %w", listing.ErrNotAFolder), http.StatusBadRequest, CodeNotAFolder, ExitInvalidArgument},
		{"not a file", listing.ErrNotAFile, http.StatusBadRequest, CodeNotAFile, ExitInvalidArgument},
		{"entry", listing.ErrEntryNotFound, http.StatusNotFound, CodeNotFound, ExitFileNotFound},
		{"source", navigator.ErrUnknownSource, http.StatusNotFound, CodeNotFound, ExitFileNotFound},
		{"running", engine.ErrAlreadyRunning, http.StatusConflict, CodeConflict, ExitInvalidArgument},
		{"no engine", engine.ErrNotInstalled, http.StatusServiceUnavailable, CodeServiceUnavailable, ExitExternalServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout, ExitExternalServiceUnavailable},
		{"app error", NewBadRequest("bad"), http.StatusBadRequest, CodeBadRequest, ExitInvalidArgument},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, ExitCode(tt.err))
		})
	}

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitSignalInt, ExitCode(context.Canceled))
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/browse", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &listing.Error{Op: "browse", URL: "https://elsewhere/", Err: listing.ErrNavigationBlocked})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeNavigationBlocked, body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.Equal(t, "https://elsewhere/", body.Error.Details["url"])
}

func TestWrapInternal(t *testing.T) {
	err := WrapInternal(context.Background(), errors.New("disk"), "save failed")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "save failed: disk", err.Error())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, CodeTimeout, WrapInternal(ctx, errors.New("x"), "slow").Code)
}

func TestRouteFallbacks(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	MethodNotAllowedHandler(rec, httptest.NewRequest(http.MethodPost, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeMethodNotAllowed, body.Error.Code)
}

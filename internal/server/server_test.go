package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/demolauncher/internal/errors"
	"github.com/3leaps/demolauncher/internal/server/handlers"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/navigator"
)

func TestServer_UnknownRouteIsErrorEnvelope(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/demos", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeNotFound, body.Error.Code)
	assert.Contains(t, body.Error.Message, "GET /v1/demos")
	assert.NotEmpty(t, body.Error.RequestID, "request id middleware runs before routing")
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", New("127.0.0.1", 8080).Addr())
	assert.Equal(t, "[::1]:9000", New("::1", 9000).Addr())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_NavigationRoutesNeedNavigator(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/sources", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type emptyLister struct{}

func (emptyLister) List(_ context.Context, folderURL string) (*listing.Result, error) {
	return &listing.Result{Folder: folderURL}, nil
}
func (emptyLister) ChildURL(string, listing.Entry) (string, error) { return "", listing.ErrNotAFolder }
func (emptyLister) FileURL(string, listing.Entry) (string, error)  { return "", listing.ErrNotAFile }
func (emptyLister) Protocol() listing.Protocol                     { return listing.ProtocolHTTP }

func TestServer_NavigationRoutes(t *testing.T) {
	nav, err := navigator.New(
		[]navigator.Source{{Name: "aq", URL: "https://demos.example.com/aq/"}},
		map[listing.Protocol]listing.Lister{listing.ProtocolHTTP: emptyLister{}},
	)
	require.NoError(t, err)
	srv := New("127.0.0.1", 0, WithNavigator(nav))

	req := httptest.NewRequest(http.MethodPost, "/v1/sources/aq", nil)
	req.Header.Set(apperrors.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(apperrors.RequestIDHeader))

	var resp handlers.ListingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "https://demos.example.com/aq/", resp.Folder)
	assert.Empty(t, resp.Entries)
	assert.Equal(t, "Loaded 0 folders and 0 files.", resp.Summary)

	req = httptest.NewRequest(http.MethodGet, "/v1/back", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, New("127.0.0.1", 0).Shutdown(context.Background()))
}

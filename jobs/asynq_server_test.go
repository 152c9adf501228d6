package jobs

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestRunGLIntegrityWithoutClient(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gl-integrity", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

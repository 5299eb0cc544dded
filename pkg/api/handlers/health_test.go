package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/distfs/pkg/store"
)

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "distfs", resp.Data.(map[string]interface{})["service"])
}

func TestReadinessNoStore(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec).Status)
}

func TestReadiness(t *testing.T) {
	s := newTestStore(t, 8)
	h := NewHealthHandler(s)
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, s.DevicePath(), data["device"])
	assert.Equal(t, float64(0), data["entries"])
}

func TestReadinessDeviceMissing(t *testing.T) {
	s, err := store.New(store.Config{DevicePath: t.TempDir() + "/missing.img"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewHealthHandler(s).Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

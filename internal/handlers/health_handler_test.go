package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeReadiness struct{ ready bool }

func (f fakeReadiness) Ready() bool { return f.ready }

func TestLiveAlwaysOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(fakeReadiness{ready: false}, "2.0.0")
	r := gin.New()
	r.GET("/health", h.Live)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2.0.0")
}

func TestReadyGatesOnWarmup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, ready := range []bool{false, true} {
		h := NewHealthHandler(fakeReadiness{ready: ready}, "2.0.0")
		r := gin.New()
		r.GET("/v2/health", h.Ready)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/health", nil))

		if ready {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		}
	}
}

package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"id": 1}) })
	router.GET("/bad", func(c *gin.Context) { ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "bad", "field x") })
	router.GET("/stop", func(c *gin.Context) {
		Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "nope")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.JSONEq(t, `{"success":true,"data":{"id":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.JSONEq(t, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"bad","details":"field x"}}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stop", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

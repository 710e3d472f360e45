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

func render(fn func(c *gin.Context)) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	return w
}

func TestEnvelope(t *testing.T) {
	w := render(func(c *gin.Context) { Success(c, gin.H{"id": "p1"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	var ok map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, float64(0), ok["code"])
	assert.Equal(t, "p1", ok["data"].(map[string]any)["id"])

	w = render(func(c *gin.Context) { Conflict(c, "busy") })
	assert.Equal(t, http.StatusConflict, w.Code)
	var failed Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	assert.Equal(t, Response{Code: 409, Message: "busy"}, failed)
}

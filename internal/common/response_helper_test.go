package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code   int
		status int
	}{
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeSessionClosed, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeInvalidAuditState, http.StatusConflict},
		{CodeIncompleteVerification, http.StatusConflict},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(tt.code), GetErrorMessage(tt.code))
	}
}

func TestResponseBusinessErrorCarriesData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ResponseBusinessError(c, &BusinessError{
		Code:    CodeIncompleteVerification,
		Message: "1 项资产未核查",
		Data:    gin.H{"pendingAssets": 1},
	})

	require.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp["success"].(bool))
	assert.Equal(t, float64(CodeIncompleteVerification), resp["code"])
	assert.Equal(t, float64(1), resp["data"].(map[string]any)["pendingAssets"])
}

func TestResponseErrorDefaultsMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ResponseError(c, CodeNotFound, "")

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "资源不存在", resp.Message)
}

func TestNewBusinessErrorDefaultsMessage(t *testing.T) {
	err := NewBusinessError(CodeUnavailable, "")
	assert.Equal(t, "服务暂不可用", err.Error())
	assert.Equal(t, "队列未启用", NewBusinessError(CodeUnavailable, "队列未启用").Message)
}

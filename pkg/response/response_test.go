package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/apperr"
)

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", apperr.Validation("only lowercase letters, numbers, hyphens"), http.StatusBadRequest, "only lowercase letters, numbers, hyphens"},
		{"conflict wrapped", fmt.Errorf("create: %w", apperr.Conflict("subdomain already taken")), http.StatusConflict, "subdomain already taken"},
		{"not found", apperr.NotFound("patient not found"), http.StatusNotFound, "patient not found"},
		{"unauthorized", apperr.Unauthorized("sign in required"), http.StatusUnauthorized, "sign in required"},
		{"forbidden", apperr.Forbidden("not allowed"), http.StatusForbidden, "not allowed"},
		{"internal hides detail", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

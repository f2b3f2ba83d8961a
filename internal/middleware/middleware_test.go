package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nextoral/backend/internal/models"
)

type stubValidator struct {
	id  models.Identity
	err error
}

func (s stubValidator) IdentityFromToken(string) (models.Identity, error) { return s.id, s.err }

func newEngine(mw ...gin.HandlerFunc) (*gin.Engine, *models.Identity) {
	gin.SetMode(gin.TestMode)
	var seen models.Identity
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		seen = IdentityFrom(c)
		c.Status(http.StatusOK)
	})
	r.GET("/", handlers...)
	return r, &seen
}

func TestBearer(t *testing.T) {
	user := models.Identity{UserID: uuid.New(), OrgID: uuid.New(), Role: models.OrgRoleStaff}

	t.Run("no header is anonymous", func(t *testing.T) {
		r, seen := newEngine(Bearer(stubValidator{id: user}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, seen.IsAnonymous())
	})

	t.Run("valid token", func(t *testing.T) {
		r, seen := newEngine(Bearer(stubValidator{id: user}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, user, *seen)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		r, _ := newEngine(Bearer(stubValidator{err: errors.New("expired")}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		r, _ := newEngine(Bearer(stubValidator{id: user}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireOrgRole(t *testing.T) {
	org := uuid.New()
	tests := []struct {
		name string
		id   models.Identity
		want int
	}{
		{"anonymous", models.Anonymous, http.StatusUnauthorized},
		{"no org", models.Identity{UserID: uuid.New()}, http.StatusForbidden},
		{"wrong role", models.Identity{UserID: uuid.New(), OrgID: org, Role: models.OrgRoleStaff}, http.StatusForbidden},
		{"owner", models.Identity{UserID: uuid.New(), OrgID: org, Role: models.OrgRoleOwner}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := tt.id
			r, _ := newEngine(func(c *gin.Context) { SetIdentity(c, id) }, RequireOrgRole(models.OrgRoleOwner, models.OrgRoleAdmin))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(NewCORSPolicy("http://localhost:3000", "nextoral.com")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPolicy_Allows(t *testing.T) {
	p := NewCORSPolicy("http://localhost:3000, https://admin.example/", "nextoral.com")

	assert.True(t, p.Allows("http://localhost:3000"))
	assert.True(t, p.Allows("https://admin.example"))
	assert.True(t, p.Allows("https://clinic.nextoral.com"))
	assert.True(t, p.Allows("https://nextoral.com"))
	assert.False(t, p.Allows("https://evilnextoral.com"))
	assert.False(t, p.Allows("https://nextoral.com.evil.example"))
	assert.False(t, p.Allows(""))
}

func TestCORS_Wildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(NewCORSPolicy("*", "")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

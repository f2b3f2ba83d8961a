package domains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/internal/models"
)

type stubOwners struct{ owner, taken string }

func (s stubOwners) IsOwner(_ context.Context, _ uuid.UUID, slug string) (bool, error) {
	return slug == s.owner, nil
}

func (s stubOwners) SlugTaken(_ context.Context, slug string) (bool, error) {
	return slug == s.owner || slug == s.taken, nil
}

var caller = uuid.MustParse("cccccccc-0000-0000-0000-000000000003")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, signedIn bool) (*gin.Engine, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, _ := newTestRegistry(t)
	r := gin.New()
	auth := func(c *gin.Context) {
		if signedIn {
			middleware.SetIdentity(c, models.Identity{UserID: caller})
		}
		c.Next()
	}
	NewHandler(reg, stubOwners{owner: "mine", taken: "adopted"}).Register(r, auth)
	return r, reg
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHandler_ConfigIsPublic(t *testing.T) {
	r, _ := newTestRouter(t, false)
	w, env := do(r, http.MethodGet, "/api/domains/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"protocol":"https","rootDomain":"nextoral.com"}`, string(env.Data))
}

func TestHandler_CreateAndConflict(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w, env := do(r, http.MethodPost, "/api/domains", `{"subdomain":"clinic42"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"redirectUrl":"https://clinic42.nextoral.com"}`, string(env.Data))

	w, env = do(r, http.MethodPost, "/api/domains", `{"subdomain":"clinic42"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "subdomain already taken", env.Error)

	w, _ = do(r, http.MethodPost, "/api/domains", `{"subdomain":"My Clinic!"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateRejectsSurroundingSpaces(t *testing.T) {
	r, reg := newTestRouter(t, true)

	w, _ := do(r, http.MethodPost, "/api/domains", `{"subdomain":" clinic"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, http.MethodPost, "/api/domains", `{"subdomain":"clinic\n"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	md, err := reg.Get(context.Background(), "clinic")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestHandler_CreatorMayDeleteUnusedReservation(t *testing.T) {
	r, reg := newTestRouter(t, true)
	ctx := context.Background()

	w, _ := do(r, http.MethodPost, "/api/domains", `{"subdomain":"spare"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	md, err := reg.Get(ctx, "spare")
	require.NoError(t, err)
	assert.Equal(t, caller.String(), md.CreatedBy)

	_, err = reg.Create(ctx, "adopted", caller)
	require.NoError(t, err)
	_, err = reg.Create(ctx, "other", uuid.New())
	require.NoError(t, err)

	w, _ = do(r, http.MethodDelete, "/api/domains/other", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(r, http.MethodDelete, "/api/domains/adopted", "")
	assert.Equal(t, http.StatusForbidden, w.Code, "an organization uses the slug")

	w, _ = do(r, http.MethodDelete, "/api/domains/spare", "")
	require.Equal(t, http.StatusOK, w.Code)
	md, err = reg.Get(ctx, "spare")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestHandler_DeleteRequiresOwnership(t *testing.T) {
	r, reg := newTestRouter(t, true)
	ctx := context.Background()
	for _, s := range []string{"mine", "theirs"} {
		_, err := reg.Create(ctx, s, uuid.Nil)
		require.NoError(t, err)
	}

	w, _ := do(r, http.MethodDelete, "/api/domains/theirs", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := do(r, http.MethodDelete, "/api/domains/mine", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Domain mine has been deleted successfully"}`, string(env.Data))

	md, err := reg.Get(ctx, "mine")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestHandler_Landing(t *testing.T) {
	r, reg := newTestRouter(t, false)
	_, err := reg.Create(context.Background(), "clinic42", uuid.Nil)
	require.NoError(t, err)

	w, _ := do(r, http.MethodGet, "/s/clinic42", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(r, http.MethodGet, "/s/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

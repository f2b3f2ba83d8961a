package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/internal/session"
	"github.com/nextoral/backend/pkg/queue"
	"github.com/nextoral/backend/pkg/response"
)

const oauthStateCookie = "oauth_state"

// UserStore persists users.
type UserStore interface {
	UpsertByEmail(ctx context.Context, email, fullName string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MembershipLister lists the organizations a user belongs to.
type MembershipLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
}

// EmailQueue hands sign-in emails to the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users       UserStore
	memberships MembershipLister
	sessions    *session.Store
	cookies     session.Cookies
	otp         *OTPStore
	emails      EmailQueue
	jwt         *JWTService
	google      *GoogleProvider
	homeURL     string
	logger      *zap.Logger
}

// Deps groups the handler's collaborators.
type Deps struct {
	Users       UserStore
	Memberships MembershipLister
	Sessions    *session.Store
	Cookies     session.Cookies
	OTP         *OTPStore
	Emails      EmailQueue
	JWT         *JWTService
	Google      *GoogleProvider // nil disables Google sign-in
	HomeURL     string          // where OAuth sign-in lands, e.g. https://nextoral.com
	Logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		users:       d.Users,
		memberships: d.Memberships,
		sessions:    d.Sessions,
		cookies:     d.Cookies,
		otp:         d.OTP,
		emails:      d.Emails,
		jwt:         d.JWT,
		google:      d.Google,
		homeURL:     d.HomeURL,
		logger:      d.Logger,
	}
}

// OTPRequest is the body for POST /api/auth/otp/request.
type OTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// OTPVerifyRequest is the body for POST /api/auth/otp/verify.
type OTPVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	User     *models.User    `json:"user"`
	Identity models.Identity `json:"identity"`
}

// TokenResponse carries a bearer token for the sync client.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// RequestOTP handles POST /api/auth/otp/request.
func (h *Handler) RequestOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "valid email required")
		return
	}
	email := NormalizeEmail(req.Email)
	code, err := h.otp.Issue(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	err = h.emails.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
		EmailType:      queue.EmailSignInCode,
		RecipientEmail: email,
		Subject:        "Your Nextoral sign-in code",
		BodyText:       fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, int(h.otp.ttl.Minutes())),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"sent": true})
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email and code required")
		return
	}
	if err := h.otp.Verify(c.Request.Context(), req.Email, req.Code); err != nil {
		response.Error(c, err)
		return
	}
	user, err := h.users.UpsertByEmail(c.Request.Context(), req.Email, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := h.startSession(c, user)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("signed in", zap.String("user_id", user.ID.String()), zap.String("method", "otp"))
	response.OK(c, SignInResponse{User: user, Identity: id})
}

// GoogleLogin handles GET /api/auth/oauth/google.
func (h *Handler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		response.NotFound(c, "google sign-in is not configured")
		return
	}
	state := rand.Text()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/oauth",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state))
}

// GoogleCallback handles GET /api/auth/oauth/google/callback.
func (h *Handler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		response.NotFound(c, "google sign-in is not configured")
		return
	}
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		response.Unauthorized(c, "invalid oauth state")
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/api/auth/oauth", MaxAge: -1})

	if e := c.Query("error"); e != "" {
		response.Unauthorized(c, "google sign-in was cancelled")
		return
	}
	gu, err := h.google.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("google exchange failed", zap.Error(err))
		response.Unauthorized(c, "google sign-in failed")
		return
	}
	user, err := h.users.UpsertByEmail(c.Request.Context(), gu.Email, gu.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.startSession(c, user); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("signed in", zap.String("user_id", user.ID.String()), zap.String("method", "google"))
	c.Redirect(http.StatusFound, h.homeURL)
}

// Token handles GET /api/auth/token. Issues a bearer token for the session's identity.
func (h *Handler) Token(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	token, expires, err := h.jwt.Generate(id)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, ExpiresAt: expires.UnixMilli()})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	user, err := h.users.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, SignInResponse{User: user, Identity: id})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if token := h.cookies.Read(c); token != "" {
		if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
			response.Error(c, err)
			return
		}
	}
	h.cookies.Clear(c)
	response.OK(c, gin.H{"signedOut": true})
}

// startSession opens a session for user, acting in their first organization if any.
func (h *Handler) startSession(c *gin.Context, user *models.User) (models.Identity, error) {
	id := models.Identity{UserID: user.ID, Email: user.Email}
	orgs, err := h.memberships.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		return id, err
	}
	if len(orgs) > 0 {
		id.OrgID = orgs[0].ID
		id.Role = orgs[0].Role
	}
	token, err := h.sessions.Create(c.Request.Context(), id)
	if err != nil {
		return id, err
	}
	h.cookies.Write(c, token)
	return id, nil
}

// Register mounts the auth routes. requireUser guards routes that need a session.
func (h *Handler) Register(r gin.IRouter, requireUser gin.HandlerFunc) {
	g := r.Group("/api/auth")
	g.POST("/otp/request", h.RequestOTP)
	g.POST("/otp/verify", h.VerifyOTP)
	g.GET("/oauth/google", h.GoogleLogin)
	g.GET("/oauth/google/callback", h.GoogleCallback)
	g.POST("/logout", h.Logout)
	g.GET("/me", requireUser, h.Me)
	g.GET("/token", requireUser, h.Token)
}

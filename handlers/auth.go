package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zelosify/zelosify/server/internal/apperr"
	"github.com/zelosify/zelosify/server/internal/login"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/pkg/logger"
	"github.com/zelosify/zelosify/server/pkg/middleware"
)

const (
	TempTokenCookie    = "temp_token"
	AccessTokenCookie  = middleware.AccessTokenCookie
	RefreshTokenCookie = "refresh_token"

	accessCookieTTL  = 4 * time.Hour
	refreshCookieTTL = 24 * time.Hour
)

// LoginRequest is the password step body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyTOTPRequest is the second step body. TempToken is only read when the
// temp_token cookie is absent.
type VerifyTOTPRequest struct {
	TOTP      string `json:"totp"`
	TempToken string `json:"tempToken,omitempty"`
}

// LoginFlow is the part of login.Service the handlers drive.
type LoginFlow interface {
	Begin(ctx context.Context, username, password string) (*login.Challenge, error)
	VerifyTOTP(ctx context.Context, tempToken, code string) (*login.Session, error)
	Logout(ctx context.Context, p *models.Principal, refreshToken, accessToken string) error
}

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// AuthHandler holds dependencies
type AuthHandler struct {
	flow    LoginFlow
	cookies CookieConfig
	now     func() time.Time
}

func NewAuthHandler(flow LoginFlow, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{flow: flow, cookies: cookies, now: time.Now}
}

// Register routes under /auth. required must reject unauthenticated requests;
// optional attaches a principal when one can be resolved.
func (h *AuthHandler) Register(rg *gin.RouterGroup, required, optional gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/verify-totp", h.VerifyTOTP)
	a.POST("/logout", optional, h.Logout)
	a.GET("/me", required, h.Me)
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, int(ttl/time.Second), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

// Login checks the password and hands out a short-lived temp token cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "Username and password are required"))
		return
	}
	ch, err := h.flow.Begin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	h.setCookie(c, TempTokenCookie, ch.TempToken, ch.ExpiresAt.Sub(h.now()).Round(time.Second))
	c.JSON(http.StatusOK, gin.H{
		"message":   "Password verified. TOTP required.",
		"state":     ch.State,
		"expiresAt": ch.ExpiresAt,
	})
}

// VerifyTOTP completes the login. Cookies are only touched on success.
func (h *AuthHandler) VerifyTOTP(c *gin.Context) {
	var req VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "Temp token and TOTP are required"))
		return
	}
	temp, _ := c.Cookie(TempTokenCookie)
	if temp == "" {
		temp = req.TempToken
	}
	sess, err := h.flow.VerifyTOTP(c.Request.Context(), temp, req.TOTP)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	h.setCookie(c, AccessTokenCookie, sess.AccessToken, accessCookieTTL)
	h.setCookie(c, RefreshTokenCookie, sess.RefreshToken, refreshCookieTTL)
	h.clearCookie(c, TempTokenCookie)
	c.JSON(http.StatusOK, gin.H{
		"message": "TOTP verified successfully. Login successful.",
		"state":   sess.State,
		"user":    sess.User,
	})
}

// Logout ends the provider session. On a provider failure the cookies stay so
// the client can retry.
func (h *AuthHandler) Logout(c *gin.Context) {
	refresh, _ := c.Cookie(RefreshTokenCookie)
	access, _ := c.Cookie(AccessTokenCookie)
	if refresh == "" {
		// header clients send the refresh token as the bearer credential
		refresh = middleware.BearerToken(c.GetHeader("Authorization"))
	} else if access == "" {
		access = middleware.BearerToken(c.GetHeader("Authorization"))
	}

	p, _ := middleware.Principal(c)
	if err := h.flow.Logout(c.Request.Context(), p, refresh, access); err != nil {
		apperr.Abort(c, err)
		return
	}
	if p != nil {
		logger.WithFields(map[string]interface{}{"user": p.UserID, "provider": p.Provider}).Infof("logout: session ended")
	}
	h.clearCookie(c, AccessTokenCookie)
	h.clearCookie(c, RefreshTokenCookie)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the principal attached by the auth gate.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		apperr.Abort(c, apperr.Unauthorized(apperr.ReasonNoPrincipal, "Authentication required", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

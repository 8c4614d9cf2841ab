package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/auth"
	"github.com/personaverse/persona-chat/internal/common"
	"github.com/personaverse/persona-chat/internal/httpapi/middleware"
	"github.com/personaverse/persona-chat/internal/models"
)

type loginReq struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=100"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Validation error")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.Log.Error("login lookup failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		common.Fail(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := auth.SignJWT(user.ID, user.Username, h.Cfg.JWTSecret, h.Cfg.JWTTTL)
	if err != nil {
		h.Log.Error("token sign failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	h.setTokenCookie(c, token, int(h.Cfg.JWTTTL.Seconds()))

	common.OKWithMessage(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
	}, "Login successful")
}

func (h *Handler) Logout(c *gin.Context) {
	// Best effort: denylist the jti until the token would expire anyway.
	if h.Tokens != nil {
		if tokenStr, err := c.Cookie(middleware.CookieName); err == nil && tokenStr != "" {
			if claims, err := auth.ParseJWT(tokenStr, h.Cfg.JWTSecret); err == nil {
				ttl := time.Until(claims.ExpiresAt.Time)
				if err := h.Tokens.RevokeToken(c.Request.Context(), claims.ID, ttl); err != nil {
					h.Log.Warn("token revocation failed", zap.Error(err))
				}
			}
		}
	}

	h.setTokenCookie(c, "", -1)
	common.OKWithMessage(c, nil, "Logout successful")
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "User not found")
			return
		}
		h.Log.Error("me lookup failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to get user information")
		return
	}

	common.OK(c, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"createdAt": user.CreatedAt,
	})
}

func (h *Handler) setTokenCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	secure := h.Cfg.AppEnv == "production"
	c.SetCookie(middleware.CookieName, value, maxAge, "/", "", secure, true)
}

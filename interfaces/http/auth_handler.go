package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-agent/domain/model"
	"social-agent/infrastructure/cache"
	"social-agent/infrastructure/logger"
	"social-agent/usecase"
)

type IAuthHandler interface {
	Status(ctx *gin.Context)
	GetAuthURL(ctx *gin.Context)
	Callback(ctx *gin.Context)
}

type authHandler struct {
	publishUsecase usecase.IPublishUsecase
	statusCache    *cache.AuthStatusCache
}

func NewAuthHandler(publishUsecase usecase.IPublishUsecase, statusCache *cache.AuthStatusCache) IAuthHandler {
	return &authHandler{publishUsecase: publishUsecase, statusCache: statusCache}
}

// Status reports per-platform session validity. Live checks hit every remote
// API, so results are cached briefly.
func (h *authHandler) Status(c *gin.Context) {
	if status, ok := h.statusCache.Get(c.Request.Context()); ok {
		c.JSON(http.StatusOK, status)
		return
	}
	status := h.publishUsecase.AuthStatus(c.Request.Context())
	h.statusCache.Set(c.Request.Context(), status)
	c.JSON(http.StatusOK, status)
}

// GetAuthURL returns the authorization URL the operator's browser should open.
func (h *authHandler) GetAuthURL(c *gin.Context) {
	name := c.Param("platform")
	platform, ok := h.publishUsecase.Platform(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_platform"})
		return
	}
	authURL, err := platform.AuthURL(c.Request.Context())
	if err != nil {
		if errors.Is(err, model.ErrAuthNotConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "auth_not_configured"})
			return
		}
		logger.GetLogger().WithField("platform", name).WithField("error", err).Error("could not build auth url")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "auth_url_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback completes the OAuth flow for the named platform, then serves a tiny
// page that closes the popup window the operator authorized in.
func (h *authHandler) Callback(c *gin.Context) {
	name := c.Param("platform")
	platform, ok := h.publishUsecase.Platform(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_platform"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
		return
	}
	err := platform.ExchangeCode(c.Request.Context(), code, c.Query("state"))
	if err != nil {
		logger.GetLogger().WithField("platform", name).WithField("error", err).Error("oauth exchange failed")
		switch {
		case errors.Is(err, model.ErrInvalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		case errors.Is(err, model.ErrAuthNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "auth_not_configured"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "auth_exchange_failed"})
		}
		return
	}
	h.statusCache.Invalidate(c.Request.Context())
	c.Data(http.StatusOK, "text/html; charset=utf-8",
		[]byte("<html><body>Authentication successful. You can close this window.<script>window.close();</script></body></html>"))
}

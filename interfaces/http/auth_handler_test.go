package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/infrastructure/cache"
	"social-agent/usecase"
)

type fakePlatform struct {
	name        string
	authed      bool
	authURL     string
	exchangeErr error
	exchanged   bool
	outcome     model.PublishOutcome
	onPublish   func(ctx context.Context)
}

func (f *fakePlatform) Name() string                                { return f.name }
func (f *fakePlatform) IsAuthenticated(ctx context.Context) bool    { return f.authed }
func (f *fakePlatform) AuthURL(ctx context.Context) (string, error) { return f.authURL, nil }
func (f *fakePlatform) ExchangeCode(ctx context.Context, code, state string) error {
	f.exchanged = true
	return f.exchangeErr
}
func (f *fakePlatform) Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome {
	if f.onPublish != nil {
		f.onPublish(ctx)
	}
	return f.outcome
}

func newAuthRouter(platforms ...*fakePlatform) (*gin.Engine, usecase.IPublishUsecase) {
	gin.SetMode(gin.TestMode)
	list := make([]repository.ISocialPlatform, 0, len(platforms))
	for _, p := range platforms {
		list = append(list, p)
	}
	uc := usecase.NewPublishUsecase(list)
	h := NewAuthHandler(uc, cache.NewAuthStatusCache(nil))
	r := gin.New()
	r.GET("/api/auth/status", h.Status)
	r.POST("/api/auth/:platform", h.GetAuthURL)
	r.GET("/api/auth/:platform/callback", h.Callback)
	return r, uc
}

func TestStatusReportsEveryPlatform(t *testing.T) {
	r, _ := newAuthRouter(
		&fakePlatform{name: "facebook", authed: true},
		&fakePlatform{name: "tiktok", authed: false},
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, map[string]bool{"facebook": true, "tiktok": false}, status)
}

func TestGetAuthURLReturnsPlatformURL(t *testing.T) {
	r, _ := newAuthRouter(&fakePlatform{name: "tiktok", authURL: "https://www.tiktok.com/v2/auth/authorize/?x=1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/tiktok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://www.tiktok.com/v2/auth/authorize/?x=1", body["auth_url"])
}

func TestGetAuthURLUnknownPlatformIs404(t *testing.T) {
	r, _ := newAuthRouter(&fakePlatform{name: "facebook"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/myspace", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallbackCompletesExchangeAndClosesWindow(t *testing.T) {
	p := &fakePlatform{name: "facebook"}
	r, _ := newAuthRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/facebook/callback?code=abc", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, p.exchanged)
	assert.Contains(t, w.Body.String(), "window.close()")
}

func TestCallbackWithoutCodeIs400(t *testing.T) {
	p := &fakePlatform{name: "facebook"}
	r, _ := newAuthRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/facebook/callback", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, p.exchanged)
}

func TestCallbackInvalidStateIs400(t *testing.T) {
	p := &fakePlatform{name: "tiktok", exchangeErr: model.ErrInvalidState}
	r, _ := newAuthRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/tiktok/callback?code=abc&state=bad", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")
}

func TestCallbackRemoteFailureIs502(t *testing.T) {
	p := &fakePlatform{name: "instagram", exchangeErr: model.ErrAuthExchangeFailed}
	r, _ := newAuthRouter(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/instagram/callback?code=abc", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

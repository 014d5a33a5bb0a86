package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"social-agent/domain/model"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memStore) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func authedStore() *memStore {
	store := newMemStore()
	store.data[tokenKey] = "ig-token"
	store.data[accountIDKey] = "acct1"
	return store
}

func newTestClient(store *memStore) *Client {
	c := NewClient(Config{
		AppID: "app", AppSecret: "secret",
		RedirectURI: "http://localhost/cb", PublicBaseURL: "https://media.example.com",
	}, store)
	c.imageDelay = time.Millisecond
	c.pollInterval = time.Millisecond
	return c
}

func imageAsset() *model.MediaAsset {
	return &model.MediaAsset{FileName: "pic.jpg", Kind: model.MediaKindImage, Size: 8, MimeType: "image/jpeg"}
}

func videoAsset() *model.MediaAsset {
	return &model.MediaAsset{FileName: "clip.mp4", Kind: model.MediaKindVideo, Size: 64, MimeType: "video/mp4"}
}

func TestPublishImageUsesPublicAssetURL(t *testing.T) {
	var containerCreated, published bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/acct1/media":
			assert.Equal(t, "https://media.example.com/uploads/pic.jpg", r.FormValue("image_url"))
			assert.Equal(t, "a caption", r.FormValue("caption"))
			assert.Equal(t, "ig-token", r.FormValue("access_token"))
			assert.Empty(t, r.FormValue("media_type"))
			containerCreated = true
			json.NewEncoder(w).Encode(map[string]string{"id": "cont1"})
		case "/acct1/media_publish":
			assert.Equal(t, "cont1", r.FormValue("creation_id"))
			published = true
			json.NewEncoder(w).Encode(map[string]string{"id": "post1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(authedStore())
	c.graphBaseURL = srv.URL

	outcome := c.Publish(context.Background(), imageAsset(), "a caption")

	require.True(t, outcome.Success, outcome.Message)
	assert.True(t, containerCreated)
	assert.True(t, published)
	assert.Equal(t, "post1", outcome.PostID)
	assert.Equal(t, "https://www.instagram.com/p/post1/", outcome.URL)
}

func TestPublishVideoPollsUntilFinished(t *testing.T) {
	var statusCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/acct1/media":
			assert.Equal(t, "REELS", r.FormValue("media_type"))
			assert.Equal(t, "https://media.example.com/uploads/clip.mp4", r.FormValue("video_url"))
			json.NewEncoder(w).Encode(map[string]string{"id": "cont2"})
		case "/cont2":
			statusCalls++
			status := "IN_PROGRESS"
			if statusCalls >= 3 {
				status = "FINISHED"
			}
			json.NewEncoder(w).Encode(map[string]string{"status_code": status})
		case "/acct1/media_publish":
			json.NewEncoder(w).Encode(map[string]string{"id": "post2"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(authedStore())
	c.graphBaseURL = srv.URL

	outcome := c.Publish(context.Background(), videoAsset(), "reel caption")

	require.True(t, outcome.Success, outcome.Message)
	assert.Equal(t, 3, statusCalls)
	assert.Equal(t, "post2", outcome.PostID)
}

func TestPublishVideoPollExhaustionFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acct1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "cont3"})
		case "/cont3":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "IN_PROGRESS"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(authedStore())
	c.graphBaseURL = srv.URL
	c.pollAttempts = 3

	outcome := c.Publish(context.Background(), videoAsset(), "")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "IN_PROGRESS")
}

func TestPublishVideoErrorStatusFailsWithoutPublishing(t *testing.T) {
	var publishCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acct1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "cont4"})
		case "/cont4":
			json.NewEncoder(w).Encode(map[string]string{"status_code": "ERROR"})
		case "/acct1/media_publish":
			publishCalled = true
		}
	}))
	defer srv.Close()

	c := newTestClient(authedStore())
	c.graphBaseURL = srv.URL

	outcome := c.Publish(context.Background(), videoAsset(), "")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "ERROR")
	assert.False(t, publishCalled)
}

func TestPublishWithoutAccountIDFails(t *testing.T) {
	store := newMemStore()
	store.data[tokenKey] = "ig-token"

	c := newTestClient(store)

	outcome := c.Publish(context.Background(), imageAsset(), "")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "account id")
}

func TestExchangeCodePersistsLongLivedTokenAndAccount(t *testing.T) {
	store := newMemStore()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"access_token": "short-token", "token_type": "Bearer"})
		case "/oauth/access_token":
			assert.Equal(t, "fb_exchange_token", r.URL.Query().Get("grant_type"))
			assert.Equal(t, "short-token", r.URL.Query().Get("fb_exchange_token"))
			json.NewEncoder(w).Encode(map[string]string{"access_token": "long-token"})
		case "/me/accounts":
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"id": "page9"}}})
		case "/page9":
			assert.Equal(t, "instagram_business_account", r.URL.Query().Get("fields"))
			json.NewEncoder(w).Encode(map[string]any{"instagram_business_account": map[string]string{"id": "igbiz1"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(store)
	c.graphBaseURL = srv.URL
	c.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}

	require.NoError(t, c.ExchangeCode(context.Background(), "the-code", ""))
	assert.Equal(t, "long-token", store.data[tokenKey])
	assert.Equal(t, "igbiz1", store.data[accountIDKey])
}

func TestExchangeCodeFailureLeavesStoreUntouched(t *testing.T) {
	store := newMemStore()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"access_token": "short-token", "token_type": "Bearer"})
		case "/oauth/access_token":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "bad exchange"}})
		}
	}))
	defer srv.Close()

	c := newTestClient(store)
	c.graphBaseURL = srv.URL
	c.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}

	err := c.ExchangeCode(context.Background(), "the-code", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrAuthExchangeFailed)
	assert.Empty(t, store.data[tokenKey])
	assert.Empty(t, store.data[accountIDKey])
}

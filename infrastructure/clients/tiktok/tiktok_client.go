package tiktok

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/infrastructure/logger"

	"github.com/google/go-querystring/query"
)

const (
	tokenKey     = "tiktok_token"
	stateKey     = "tiktok_state"
	captionLimit = 150

	defaultAPIBaseURL  = "https://open.tiktokapis.com"
	defaultAuthBaseURL = "https://www.tiktok.com/v2/auth/authorize/"

	// fixed upload chunk size declared during init and honored during transfer
	uploadChunkSize = int64(10_000_000)

	defaultPollInterval = 3 * time.Second
	maxPollAttempts     = 30
)

// Config carries the TikTok OAuth app credentials.
type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
}

// Client publishes videos to TikTok via the direct-post protocol: init declares
// size and chunking, the file goes up in sequential Content-Range chunks, and a
// status poll loop waits for the remote publish to complete. TikTok accepts no
// image posts through this API.
type Client struct {
	conf  Config
	store repository.ICredentialStore
	http  *http.Client

	apiBaseURL   string
	authBaseURL  string
	chunkSize    int64
	pollInterval time.Duration
	pollAttempts int

	accessToken string
}

func NewClient(conf Config, store repository.ICredentialStore) *Client {
	return &Client{
		conf:         conf,
		store:        store,
		http:         http.DefaultClient,
		apiBaseURL:   defaultAPIBaseURL,
		authBaseURL:  defaultAuthBaseURL,
		chunkSize:    uploadChunkSize,
		pollInterval: defaultPollInterval,
		pollAttempts: maxPollAttempts,
	}
}

func (c *Client) Name() string { return "tiktok" }

func (c *Client) token(ctx context.Context) string {
	if c.accessToken != "" {
		return c.accessToken
	}
	tok, err := c.store.Get(ctx, tokenKey)
	if err != nil {
		return ""
	}
	c.accessToken = tok
	return tok
}

type userInfoParams struct {
	Fields string `url:"fields"`
}

// IsAuthenticated verifies the bearer token against the user-info endpoint,
// failing closed on any error.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	tok := c.token(ctx)
	if tok == "" {
		return false
	}
	params, _ := query.Values(userInfoParams{Fields: "open_id,union_id,avatar_url,display_name"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/v2/user/info/?"+params.Encode(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var info struct {
		Data json.RawMessage `json:"data"`
	}
	return json.Unmarshal(body, &info) == nil && len(info.Data) > 0
}

type authorizeParams struct {
	ClientKey    string `url:"client_key"`
	Scope        string `url:"scope"`
	ResponseType string `url:"response_type"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
}

// AuthURL mints a fresh CSRF nonce, persists it as the expected value for the
// next callback, and embeds it in the authorization URL. Each call replaces the
// previous outstanding nonce.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	if c.conf.ClientKey == "" || c.conf.ClientSecret == "" {
		return "", model.ErrAuthNotConfigured
	}
	state := randomState()
	if err := c.store.Put(ctx, stateKey, state); err != nil {
		return "", err
	}
	params, _ := query.Values(authorizeParams{
		ClientKey:    c.conf.ClientKey,
		Scope:        "video.upload,user.info.basic",
		ResponseType: "code",
		RedirectURI:  c.conf.RedirectURI,
		State:        state,
	})
	return c.authBaseURL + "?" + params.Encode(), nil
}

// ExchangeCode validates the callback state against the stored nonce before any
// network call; a mismatch is fatal. TikTok's token endpoint takes client_key
// (not client_id) and wraps the token in a data envelope, so the exchange is a
// plain form POST rather than an oauth2.Config exchange.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) error {
	if c.conf.ClientKey == "" || c.conf.ClientSecret == "" {
		return model.ErrAuthNotConfigured
	}
	stored, err := c.store.Get(ctx, stateKey)
	if err != nil || stored == "" || state != stored {
		return model.ErrInvalidState
	}

	form := url.Values{}
	form.Set("client_key", c.conf.ClientKey)
	form.Set("client_secret", c.conf.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.conf.RedirectURI)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/v2/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token endpoint returned %d", model.ErrAuthExchangeFailed, resp.StatusCode)
	}
	var tokenResp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.Data.AccessToken == "" {
		return fmt.Errorf("%w: token endpoint returned no token", model.ErrAuthExchangeFailed)
	}
	if err := c.store.Put(ctx, tokenKey, tokenResp.Data.AccessToken); err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	_ = c.store.Delete(ctx, stateKey)
	c.accessToken = tokenResp.Data.AccessToken
	return nil
}

// Publish uploads a video. Image assets are rejected immediately, before any
// network traffic.
func (c *Client) Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome {
	if !asset.IsVideo() {
		return c.failure("TikTok only supports video uploads")
	}
	tok := c.token(ctx)
	if tok == "" {
		return c.failure("tiktok is not authenticated")
	}
	caption = truncate(caption, captionLimit)

	init, outcome := c.initUpload(ctx, asset, caption, tok)
	if init == nil {
		return outcome
	}
	if outcome, ok := c.uploadChunks(ctx, asset, init.UploadURL); !ok {
		return outcome
	}
	return c.awaitPublished(ctx, init.PublishID, tok)
}

type initResponse struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

func (c *Client) initUpload(ctx context.Context, asset *model.MediaAsset, caption, tok string) (*initResponse, model.PublishOutcome) {
	totalChunks := chunkCount(asset.Size, c.chunkSize)
	payload := map[string]any{
		"post_info": map[string]any{
			"title":                    caption,
			"privacy_level":            "PUBLIC_TO_EVERYONE",
			"disable_duet":             false,
			"disable_comment":          false,
			"disable_stitch":           false,
			"video_cover_timestamp_ms": 1000,
		},
		"source_info": map[string]any{
			"source":            "FILE_UPLOAD",
			"video_size":        asset.Size,
			"chunk_size":        c.chunkSize,
			"total_chunk_count": totalChunks,
		},
	}
	data, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/v2/post/publish/video/init/", bytes.NewReader(data))
	if err != nil {
		return nil, c.failure("tiktok upload init failed")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.failure("tiktok upload init failed")
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.failure(apiMessage(body))
	}
	var initResp struct {
		Data initResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &initResp); err != nil || initResp.Data.PublishID == "" || initResp.Data.UploadURL == "" {
		return nil, c.failure("tiktok returned an unexpected init response")
	}
	return &initResp.Data, model.PublishOutcome{}
}

// uploadChunks streams the file to the upload target in strictly increasing,
// contiguous ranges that together cover exactly the declared size.
func (c *Client) uploadChunks(ctx context.Context, asset *model.MediaAsset, uploadURL string) (model.PublishOutcome, bool) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return c.failure("could not read the uploaded file"), false
	}
	defer f.Close()

	for _, r := range chunkRanges(asset.Size, c.chunkSize) {
		chunk := make([]byte, r.end-r.start+1)
		if _, err := f.ReadAt(chunk, r.start); err != nil && err != io.EOF {
			return c.failure("could not read the uploaded file"), false
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
		if err != nil {
			return c.failure("tiktok chunk upload failed"), false
		}
		req.Header.Set("Content-Type", "video/mp4")
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, asset.Size))
		resp, err := c.http.Do(req)
		if err != nil {
			return c.failure("tiktok chunk upload failed"), false
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return c.failure(fmt.Sprintf("tiktok chunk upload failed with status %d", resp.StatusCode)), false
		}
	}
	return model.PublishOutcome{}, true
}

// awaitPublished polls the publish status until PUBLISHED, a non-processing
// terminal state, or attempt exhaustion.
func (c *Client) awaitPublished(ctx context.Context, publishID, tok string) model.PublishOutcome {
	status := "PROCESSING"
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		st, err := c.fetchStatus(ctx, publishID, tok)
		if err != nil {
			return c.failure(err.Error())
		}
		status = st
		if status != "PROCESSING" {
			break
		}
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return c.failure("publish cancelled")
		}
	}
	if status != "PUBLISHED" {
		return c.failure(fmt.Sprintf("tiktok upload did not complete (last status: %s)", status))
	}
	return model.PublishOutcome{
		Platform: c.Name(),
		Success:  true,
		Message:  "video published to TikTok",
		PostID:   publishID,
		URL:      "https://www.tiktok.com/@me/video/" + publishID,
	}
}

func (c *Client) fetchStatus(ctx context.Context, publishID, tok string) (string, error) {
	data, _ := json.Marshal(map[string]string{"publish_id": publishID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBaseURL+"/v2/post/publish/status/fetch/", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("tiktok status fetch failed")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tiktok status fetch failed")
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s", apiMessage(body))
	}
	var statusResp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil || statusResp.Data.Status == "" {
		return "", fmt.Errorf("tiktok returned an unexpected status response")
	}
	return statusResp.Data.Status, nil
}

type byteRange struct {
	start, end int64 // inclusive
}

// chunkRanges splits total bytes into contiguous, non-overlapping inclusive
// ranges of chunkSize, the last range carrying the remainder. A chunk size at or
// above the total yields a single range.
func chunkRanges(total, chunkSize int64) []byteRange {
	if total <= 0 {
		return nil
	}
	var ranges []byteRange
	for start := int64(0); start < total; start += chunkSize {
		end := start + chunkSize - 1
		if end >= total {
			end = total - 1
		}
		ranges = append(ranges, byteRange{start: start, end: end})
	}
	return ranges
}

func chunkCount(total, chunkSize int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + chunkSize - 1) / chunkSize
}

func apiMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return "tiktok upload failed"
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (c *Client) failure(msg string) model.PublishOutcome {
	logger.GetLogger().WithField("platform", "tiktok").WithField("message", msg).Warn("publish failed")
	return model.PublishOutcome{Platform: c.Name(), Success: false, Message: msg}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

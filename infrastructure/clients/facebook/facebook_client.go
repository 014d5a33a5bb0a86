package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const (
	tokenKey     = "facebook_token"
	captionLimit = 5000

	defaultGraphBaseURL      = "https://graph.facebook.com/v18.0"
	defaultGraphVideoBaseURL = "https://graph-video.facebook.com/v18.0"
	defaultAuthURL           = "https://www.facebook.com/v18.0/dialog/oauth"
	defaultTokenURL          = "https://graph.facebook.com/v18.0/oauth/access_token"

	// resumable video uploads send the file in transfer-phase chunks of this size
	defaultVideoChunkSize = int64(4 << 20)
)

// Config carries the Facebook app credentials and the target page.
type Config struct {
	AppID       string
	AppSecret   string
	RedirectURI string
	PageID      string
}

// Client publishes photos and videos to a Facebook page via the Graph API.
type Client struct {
	conf  Config
	store repository.ICredentialStore
	http  *http.Client
	oauth *oauth2.Config

	graphBaseURL      string
	graphVideoBaseURL string
	videoChunkSize    int64

	accessToken string
}

func NewClient(conf Config, store repository.ICredentialStore) *Client {
	return &Client{
		conf:  conf,
		store: store,
		http:  http.DefaultClient,
		oauth: &oauth2.Config{
			ClientID:     conf.AppID,
			ClientSecret: conf.AppSecret,
			RedirectURL:  conf.RedirectURI,
			Scopes:       []string{"pages_manage_posts", "pages_read_engagement", "pages_show_list"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  defaultAuthURL,
				TokenURL: defaultTokenURL,
			},
		},
		graphBaseURL:      defaultGraphBaseURL,
		graphVideoBaseURL: defaultGraphVideoBaseURL,
		videoChunkSize:    defaultVideoChunkSize,
	}
}

func (c *Client) Name() string { return "facebook" }

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

type identityParams struct {
	AccessToken string `url:"access_token"`
}

// IsAuthenticated verifies the persisted page token with a live /me round-trip.
// A stored token is not trusted on its own because it may have been revoked.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	tok := c.token(ctx)
	if tok == "" {
		return false
	}
	params, _ := query.Values(identityParams{AccessToken: tok})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphBaseURL+"/me?"+params.Encode(), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var me struct {
		ID string `json:"id"`
	}
	return json.Unmarshal(body, &me) == nil && me.ID != ""
}

// AuthURL builds the OAuth dialog URL. Facebook's flow carries no local nonce here;
// the popup redirect lands on the callback with just the code.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	if c.conf.AppID == "" || c.conf.AppSecret == "" {
		return "", model.ErrAuthNotConfigured
	}
	return c.oauth.AuthCodeURL(""), nil
}

// ExchangeCode swaps the authorization code for a user token, then selects the
// managed page whose token is actually used for posting (configured page id, or
// the first page when none is configured). Only the final page token is persisted.
func (c *Client) ExchangeCode(ctx context.Context, code, _ string) error {
	if c.conf.AppID == "" || c.conf.AppSecret == "" {
		return model.ErrAuthNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}

	pageToken, err := c.selectPageToken(ctx, tok.AccessToken)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, tokenKey, pageToken); err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	c.accessToken = pageToken
	return nil
}

func (c *Client) selectPageToken(ctx context.Context, userToken string) (string, error) {
	params, _ := query.Values(identityParams{AccessToken: userToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphBaseURL+"/me/accounts?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: pages lookup: %s", model.ErrAuthExchangeFailed, graphMessage(body))
	}
	var pages struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &pages); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	if len(pages.Data) == 0 {
		// fall back to the user token; posting will fail later without a page
		return userToken, nil
	}
	selected := pages.Data[0]
	if c.conf.PageID != "" {
		for _, p := range pages.Data {
			if p.ID == c.conf.PageID {
				selected = p
				break
			}
		}
	}
	return selected.AccessToken, nil
}

// Publish uploads the asset to the configured page. Images go up in a single
// multipart call; videos use the start/transfer/finish resumable protocol with
// chunked transfer phases. Every failure is reported through the outcome.
func (c *Client) Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome {
	caption = truncate(caption, captionLimit)
	tok := c.token(ctx)
	if tok == "" {
		return failure("facebook is not authenticated")
	}
	if c.conf.PageID == "" {
		return failure("facebook page id is not configured")
	}
	if asset.IsVideo() {
		return c.publishVideo(ctx, asset, caption, tok)
	}
	return c.publishPhoto(ctx, asset, caption, tok)
}

func (c *Client) publishPhoto(ctx context.Context, asset *model.MediaAsset, caption, tok string) model.PublishOutcome {
	f, err := os.Open(asset.Path)
	if err != nil {
		return failure("could not read the uploaded file")
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("source", asset.FileName)
	if err == nil {
		_, err = io.Copy(part, f)
	}
	if err != nil {
		return failure("could not read the uploaded file")
	}
	_ = mw.WriteField("message", caption)
	_ = mw.WriteField("access_token", tok)
	_ = mw.Close()

	endpoint := fmt.Sprintf("%s/%s/photos", c.graphBaseURL, url.PathEscape(c.conf.PageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return failure("facebook photo upload failed")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return failure("facebook photo upload failed")
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return failure(graphMessage(body))
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.ID == "" {
		return failure("facebook returned an unexpected response")
	}
	return model.PublishOutcome{
		Platform: c.Name(),
		Success:  true,
		Message:  "photo published to Facebook",
		PostID:   res.ID,
		URL:      "https://www.facebook.com/" + res.ID,
	}
}

type videoStartParams struct {
	UploadPhase string `url:"upload_phase"`
	FileSize    int64  `url:"file_size"`
	AccessToken string `url:"access_token"`
}

type videoTransferParams struct {
	UploadPhase     string `url:"upload_phase"`
	UploadSessionID string `url:"upload_session_id"`
	StartOffset     string `url:"start_offset"`
	AccessToken     string `url:"access_token"`
}

type videoFinishParams struct {
	UploadPhase     string `url:"upload_phase"`
	UploadSessionID string `url:"upload_session_id"`
	Description     string `url:"description"`
	AccessToken     string `url:"access_token"`
}

func (c *Client) publishVideo(ctx context.Context, asset *model.MediaAsset, caption, tok string) model.PublishOutcome {
	videosPath := fmt.Sprintf("/%s/videos", url.PathEscape(c.conf.PageID))

	// phase 1: start
	startVals, _ := query.Values(videoStartParams{UploadPhase: "start", FileSize: asset.Size, AccessToken: tok})
	body, err := c.postForm(ctx, c.graphBaseURL+videosPath, startVals)
	if err != nil {
		return failure(err.Error())
	}
	var start struct {
		UploadSessionID string `json:"upload_session_id"`
		VideoID         string `json:"video_id"`
	}
	if err := json.Unmarshal(body, &start); err != nil || start.UploadSessionID == "" {
		return failure("facebook returned an unexpected upload session")
	}

	// phase 2: transfer, one chunk at a time in strictly increasing offsets
	f, err := os.Open(asset.Path)
	if err != nil {
		return failure("could not read the uploaded file")
	}
	defer f.Close()
	chunk := make([]byte, c.videoChunkSize)
	var offset int64
	for offset < asset.Size {
		n, readErr := f.ReadAt(chunk, offset)
		if readErr != nil && readErr != io.EOF {
			return failure("could not read the uploaded file")
		}
		if n == 0 {
			break
		}
		transferVals, _ := query.Values(videoTransferParams{
			UploadPhase:     "transfer",
			UploadSessionID: start.UploadSessionID,
			StartOffset:     strconv.FormatInt(offset, 10),
			AccessToken:     tok,
		})
		endpoint := c.graphVideoBaseURL + videosPath + "?" + transferVals.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(chunk[:n]))
		if err != nil {
			return failure("facebook video transfer failed")
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := c.http.Do(req)
		if err != nil {
			return failure("facebook video transfer failed")
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return failure(graphMessage(respBody))
		}
		offset += int64(n)
	}

	// phase 3: finish, attaches the caption
	finishVals, _ := query.Values(videoFinishParams{
		UploadPhase:     "finish",
		UploadSessionID: start.UploadSessionID,
		Description:     caption,
		AccessToken:     tok,
	})
	if _, err := c.postForm(ctx, c.graphBaseURL+videosPath, finishVals); err != nil {
		return failure(err.Error())
	}

	return model.PublishOutcome{
		Platform: c.Name(),
		Success:  true,
		Message:  "video published to Facebook",
		PostID:   start.VideoID,
		URL:      "https://www.facebook.com/" + start.VideoID,
	}
}

func (c *Client) postForm(ctx context.Context, endpoint string, vals url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, fmt.Errorf("facebook request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facebook request failed")
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s", graphMessage(body))
	}
	return body, nil
}

// graphMessage extracts the Graph API error envelope, falling back to a generic message.
func graphMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return "facebook upload failed"
}

func failure(msg string) model.PublishOutcome {
	logger.GetLogger().WithField("platform", "facebook").WithField("message", msg).Warn("publish failed")
	return model.PublishOutcome{Platform: "facebook", Success: false, Message: msg}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

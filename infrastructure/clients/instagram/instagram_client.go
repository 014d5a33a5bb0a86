package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-agent/domain/model"
	"social-agent/domain/repository"
	"social-agent/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

const (
	tokenKey     = "instagram_token"
	accountIDKey = "instagram_account_id"
	captionLimit = 2200

	defaultGraphBaseURL  = "https://graph.facebook.com/v18.0"
	defaultVerifyBaseURL = "https://graph.instagram.com"
	defaultAuthURL       = "https://api.facebook.com/v18.0/dialog/oauth"
	defaultTokenURL      = "https://api.facebook.com/v18.0/oauth/access_token"

	// image containers get a fixed grace period instead of status polling; this is a
	// heuristic the platform API shape forces on the image path
	defaultImageDelay = 3 * time.Second

	defaultPollInterval = 2 * time.Second
	maxPollAttempts     = 30
)

// Config carries the Instagram app credentials. PublicBaseURL is the origin under
// which the local uploads directory is reachable from outside; Instagram fetches
// media from a URL instead of accepting raw bodies.
type Config struct {
	AppID         string
	AppSecret     string
	RedirectURI   string
	PublicBaseURL string
}

// Client publishes to an Instagram business account through the container flow:
// create a media container referencing the public asset URL, wait for remote
// processing, then publish the container.
type Client struct {
	conf  Config
	store repository.ICredentialStore
	http  *http.Client
	oauth *oauth2.Config

	graphBaseURL  string
	verifyBaseURL string
	imageDelay    time.Duration
	pollInterval  time.Duration
	pollAttempts  int

	accessToken string
	accountID   string
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
			Scopes:       []string{"instagram_basic", "instagram_content_publish", "pages_show_list"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  defaultAuthURL,
				TokenURL: defaultTokenURL,
			},
		},
		graphBaseURL:  defaultGraphBaseURL,
		verifyBaseURL: defaultVerifyBaseURL,
		imageDelay:    defaultImageDelay,
		pollInterval:  defaultPollInterval,
		pollAttempts:  maxPollAttempts,
	}
}

func (c *Client) Name() string { return "instagram" }

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

func (c *Client) account(ctx context.Context) string {
	if c.accountID != "" {
		return c.accountID
	}
	id, err := c.store.Get(ctx, accountIDKey)
	if err != nil {
		return ""
	}
	c.accountID = id
	return id
}

type verifyParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

// IsAuthenticated checks the persisted token against the identity endpoint and
// fails closed on any error.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	tok := c.token(ctx)
	if tok == "" {
		return false
	}
	params, _ := query.Values(verifyParams{Fields: "id,username", AccessToken: tok})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyBaseURL+"/me?"+params.Encode(), nil)
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

func (c *Client) AuthURL(ctx context.Context) (string, error) {
	if c.conf.AppID == "" || c.conf.AppSecret == "" {
		return "", model.ErrAuthNotConfigured
	}
	return c.oauth.AuthCodeURL(""), nil
}

type longLivedParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

// ExchangeCode performs the two-hop exchange (code -> short-lived token ->
// long-lived token), then resolves the Instagram business account id behind the
// first managed page. Token and account id are only persisted once the whole
// flow has succeeded; a failure leaves the stored state untouched.
func (c *Client) ExchangeCode(ctx context.Context, code, _ string) error {
	if c.conf.AppID == "" || c.conf.AppSecret == "" {
		return model.ErrAuthNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	shortTok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}

	params, _ := query.Values(longLivedParams{
		GrantType:       "fb_exchange_token",
		ClientID:        c.conf.AppID,
		ClientSecret:    c.conf.AppSecret,
		FBExchangeToken: shortTok.AccessToken,
	})
	body, err := c.get(ctx, c.graphBaseURL+"/oauth/access_token?"+params.Encode())
	if err != nil {
		return fmt.Errorf("%w: long-lived exchange: %v", model.ErrAuthExchangeFailed, err)
	}
	var longLived struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &longLived); err != nil || longLived.AccessToken == "" {
		return fmt.Errorf("%w: long-lived exchange returned no token", model.ErrAuthExchangeFailed)
	}

	accountID, err := c.resolveBusinessAccount(ctx, longLived.AccessToken)
	if err != nil {
		return err
	}

	if err := c.store.Put(ctx, tokenKey, longLived.AccessToken); err != nil {
		return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}
	if accountID != "" {
		if err := c.store.Put(ctx, accountIDKey, accountID); err != nil {
			return fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
		}
	}
	c.accessToken = longLived.AccessToken
	c.accountID = accountID
	return nil
}

type accessTokenParams struct {
	AccessToken string `url:"access_token"`
}

type accountFieldsParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

func (c *Client) resolveBusinessAccount(ctx context.Context, tok string) (string, error) {
	params, _ := query.Values(accessTokenParams{AccessToken: tok})
	body, err := c.get(ctx, c.graphBaseURL+"/me/accounts?"+params.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: pages lookup: %v", model.ErrAuthExchangeFailed, err)
	}
	var pages struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &pages); err != nil || len(pages.Data) == 0 {
		return "", nil
	}
	fields, _ := query.Values(accountFieldsParams{Fields: "instagram_business_account", AccessToken: tok})
	body, err = c.get(ctx, c.graphBaseURL+"/"+url.PathEscape(pages.Data[0].ID)+"?"+fields.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: business account lookup: %v", model.ErrAuthExchangeFailed, err)
	}
	var page struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return "", nil
	}
	return page.InstagramBusinessAccount.ID, nil
}

// Publish runs the container flow. Image containers get a fixed delay before the
// publish call; video containers are polled until FINISHED or attempts run out.
func (c *Client) Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome {
	caption = truncate(caption, captionLimit)
	tok := c.token(ctx)
	if tok == "" {
		return c.failure("instagram is not authenticated")
	}
	account := c.account(ctx)
	if account == "" {
		return c.failure("instagram account id not found, reconnect the Instagram account")
	}

	assetURL := strings.TrimRight(c.conf.PublicBaseURL, "/") + "/uploads/" + url.PathEscape(asset.FileName)

	form := url.Values{}
	form.Set("caption", caption)
	form.Set("access_token", tok)
	if asset.IsVideo() {
		form.Set("media_type", "REELS")
		form.Set("video_url", assetURL)
	} else {
		form.Set("image_url", assetURL)
	}
	body, err := c.postForm(ctx, c.graphBaseURL+"/"+url.PathEscape(account)+"/media", form)
	if err != nil {
		return c.failure(err.Error())
	}
	var container struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &container); err != nil || container.ID == "" {
		return c.failure("instagram returned an unexpected container response")
	}

	if asset.IsVideo() {
		if outcome, ok := c.awaitProcessing(ctx, container.ID, tok); !ok {
			return outcome
		}
	} else {
		// no status endpoint is polled for images; a fixed grace period is the
		// documented behavior, not a readiness guarantee
		select {
		case <-time.After(c.imageDelay):
		case <-ctx.Done():
			return c.failure("publish cancelled")
		}
	}

	publishForm := url.Values{}
	publishForm.Set("creation_id", container.ID)
	publishForm.Set("access_token", tok)
	body, err = c.postForm(ctx, c.graphBaseURL+"/"+url.PathEscape(account)+"/media_publish", publishForm)
	if err != nil {
		return c.failure(err.Error())
	}
	var published struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &published); err != nil || published.ID == "" {
		return c.failure("instagram returned an unexpected publish response")
	}

	kind := "photo"
	if asset.IsVideo() {
		kind = "video"
	}
	return model.PublishOutcome{
		Platform: c.Name(),
		Success:  true,
		Message:  kind + " published to Instagram",
		PostID:   published.ID,
		URL:      "https://www.instagram.com/p/" + published.ID + "/",
	}
}

type statusParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

// awaitProcessing polls the container status. IN_PROGRESS keeps polling; FINISHED
// proceeds; any other terminal state, or attempt exhaustion, fails with the last
// observed status. The second return value is false when publishing must stop.
func (c *Client) awaitProcessing(ctx context.Context, containerID, tok string) (model.PublishOutcome, bool) {
	status := "IN_PROGRESS"
	params, _ := query.Values(statusParams{Fields: "status_code", AccessToken: tok})
	endpoint := c.graphBaseURL + "/" + url.PathEscape(containerID) + "?" + params.Encode()
	for attempt := 0; status == "IN_PROGRESS" && attempt < c.pollAttempts; attempt++ {
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return c.failure("publish cancelled"), false
		}
		body, err := c.get(ctx, endpoint)
		if err != nil {
			return c.failure(err.Error()), false
		}
		var st struct {
			StatusCode string `json:"status_code"`
		}
		if err := json.Unmarshal(body, &st); err != nil {
			return c.failure("instagram returned an unexpected status response"), false
		}
		status = st.StatusCode
	}
	if status != "FINISHED" {
		return c.failure(fmt.Sprintf("instagram video processing did not finish (last status: %s)", status)), false
	}
	return model.PublishOutcome{}, true
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s", graphMessage(body))
	}
	return body, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("instagram request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instagram request failed")
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s", graphMessage(body))
	}
	return body, nil
}

func graphMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return "instagram upload failed"
}

func (c *Client) failure(msg string) model.PublishOutcome {
	logger.GetLogger().WithField("platform", "instagram").WithField("message", msg).Warn("publish failed")
	return model.PublishOutcome{Platform: c.Name(), Success: false, Message: msg}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadhunt_backend/platform/apperr"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	maxPageSize    = 100
	requestTimeout = 15 * time.Second
)

// Client talks to the Reddit data API on behalf of authenticated tenants.
// The client itself holds no tenant state; callers pass a bearer token
// obtained from the credential Manager. All requests share one rate limiter
// so concurrent tenant work stays inside the provider budget.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient creates a Reddit API client from configuration.
func NewClient(cfg config.RedditConfig, log *logger.Logger) *Client {
	rpm := cfg.GetRedditRequestsPerMinute()
	if rpm < 1 {
		rpm = 60
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetRedditAPIBaseURL(), "/"),
		userAgent:  cfg.GetRedditUserAgent(),
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 5),
		log:        log,
	}
}

// SearchPosts queries one subreddit for candidate posts matching any of the
// keywords, paginating until limit posts have been collected. With no
// keywords it falls back to the subreddit's newest posts. Posts flagged as
// adult content are filtered out.
func (c *Client) SearchPosts(ctx context.Context, token, subreddit string, keywords []string, limit int) ([]Post, error) {
	if limit < 1 {
		return nil, nil
	}

	posts := make([]Post, 0, limit)
	after := ""

	for len(posts) < limit {
		pageSize := limit - len(posts)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		path, query := c.searchRequest(subreddit, keywords, pageSize, after)
		var envelope listingEnvelope
		if err := c.getJSON(ctx, token, path, query, &envelope); err != nil {
			return nil, err
		}

		for _, child := range envelope.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			post := child.Data.toPost()
			if post.Over18 {
				continue
			}
			posts = append(posts, post)
			if len(posts) == limit {
				break
			}
		}

		after = envelope.Data.After
		if after == "" {
			break
		}
	}

	return posts, nil
}

// searchRequest builds the path and query for one search page. Keywords are
// combined into an OR query restricted to the subreddit; with no keywords the
// newest-posts listing is used instead.
func (c *Client) searchRequest(subreddit string, keywords []string, pageSize int, after string) (string, url.Values) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("raw_json", "1")
	if after != "" {
		query.Set("after", after)
	}

	terms := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			terms = append(terms, fmt.Sprintf("%q", trimmed))
		}
	}

	if len(terms) == 0 {
		return "/r/" + subreddit + "/new", query
	}

	query.Set("q", strings.Join(terms, " OR "))
	query.Set("restrict_sr", "1")
	query.Set("sort", "new")
	return "/r/" + subreddit + "/search", query
}

// ListUnread returns the tenant's unread inbox items (messages and comment replies).
func (c *Client) ListUnread(ctx context.Context, token string) ([]Message, error) {
	return c.listMessages(ctx, token, "/message/unread", false)
}

// ListSent returns the tenant's recently sent messages.
func (c *Client) ListSent(ctx context.Context, token string) ([]Message, error) {
	return c.listMessages(ctx, token, "/message/sent", true)
}

func (c *Client) listMessages(ctx context.Context, token, path string, outbound bool) ([]Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(maxPageSize))
	query.Set("raw_json", "1")

	var envelope listingEnvelope
	if err := c.getJSON(ctx, token, path, query, &envelope); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(envelope.Data.Children))
	for _, child := range envelope.Data.Children {
		if child.Kind != "t1" && child.Kind != "t4" {
			continue
		}
		messages = append(messages, child.Data.toMessage(outbound))
	}
	return messages, nil
}

// MarkRead marks an inbox item as read by its fullname.
func (c *Client) MarkRead(ctx context.Context, token, fullname string) error {
	form := url.Values{}
	form.Set("id", fullname)
	return c.postForm(ctx, token, "/api/read_message", form, nil)
}

// Reply posts a public comment under the given parent thing and returns the
// created comment's fullname.
func (c *Client) Reply(ctx context.Context, token, parentFullname, body string) (string, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", parentFullname)
	form.Set("text", body)

	var result struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				Things []struct {
					Data struct {
						Name string `json:"name"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.postForm(ctx, token, "/api/comment", form, &result); err != nil {
		return "", err
	}
	if len(result.JSON.Errors) > 0 {
		return "", apperr.Unavailable(fmt.Sprintf("comment rejected: %v", result.JSON.Errors[0]))
	}
	if len(result.JSON.Data.Things) == 0 {
		return "", apperr.Unavailable("comment created but no id returned")
	}
	return result.JSON.Data.Things[0].Data.Name, nil
}

// ComposeDM sends a private message to the given recipient.
func (c *Client) ComposeDM(ctx context.Context, token, recipient, subject, body string) error {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("to", recipient)
	form.Set("subject", subject)
	form.Set("text", body)
	return c.postForm(ctx, token, "/api/compose", form, nil)
}

func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, out interface{}) error {
	fullURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "build request", err)
	}
	return c.do(req, token, out)
}

func (c *Client) postForm(ctx context.Context, token, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "rate limiter wait", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "reddit request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.AuthExpired("reddit token rejected")
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.RateLimited("reddit rate limit hit")
	case resp.StatusCode >= 500:
		return apperr.Unavailable(fmt.Sprintf("reddit returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New(apperr.KindBadRequest, fmt.Sprintf("reddit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "decode reddit response", err)
	}
	return nil
}

// Package bluesky searches public posts through the AT Protocol XRPC API.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"disasterwatch/internal/bootstrap/config"
	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/observability"
	"disasterwatch/internal/ports"
)

const (
	createSessionPath = "/xrpc/com.atproto.server.createSession"
	searchPostsPath   = "/xrpc/app.bsky.feed.searchPosts"

	defaultHandleSuffix = ".bsky.social"
	sessionKeyPrefix    = "bluesky-session:"
	maxErrorBody        = 512
)

// Client implements ports.SocialFeed.
type Client struct {
	host       string
	username   string
	password   string
	pageSize   int
	httpClient *http.Client

	sessions   ports.Cache
	reuse      bool
	sessionTTL time.Duration

	metrics *observability.Metrics
}

var _ ports.SocialFeed = (*Client)(nil)

// NewClient builds the Bluesky client. sessions is only consulted when
// session reuse is on; it may be nil otherwise.
func NewClient(cfg config.BlueskyConfig, sessions ports.Cache, metrics *observability.Metrics) *Client {
	return &Client{
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sessions:   sessions,
		reuse:      cfg.SessionReuse && sessions != nil,
		sessionTTL: cfg.SessionTTL,
		metrics:    metrics,
	}
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
}

type searchPostsResponse struct {
	Posts []json.RawMessage `json:"posts"`
}

// FetchPosts authenticates and runs one search page for query.
func (c *Client) FetchPosts(ctx context.Context, query string) (posts []json.RawMessage, err error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if c.username == "" || c.password == "" {
		return nil, errs.Mark(errs.ErrConfiguration, nil, "bluesky credentials are not set")
	}

	started := time.Now()
	defer func() { c.metrics.SocialFetch(started, len(posts), err) }()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bluesky"))

	token, cached, err := c.session(logCtx)
	if err != nil {
		return nil, err
	}

	posts, status, err := c.search(logCtx, token, query)
	if status == http.StatusUnauthorized && cached {
		logging.Info(logCtx, "cached bluesky session rejected, re-authenticating")
		c.dropSession(logCtx)
		if token, err = c.login(logCtx); err != nil {
			return nil, err
		}
		c.storeSession(logCtx, token)
		posts, _, err = c.search(logCtx, token, query)
	}
	if err != nil {
		return nil, err
	}

	logging.Debug(logCtx, "bluesky search completed", slog.String("query", query), slog.Int("posts", len(posts)))
	return posts, nil
}

// Identifier is the login handle: a bare username gets the default suffix.
func (c *Client) Identifier() string {
	if strings.Contains(c.username, ".") {
		return c.username
	}
	return c.username + defaultHandleSuffix
}

func (c *Client) session(ctx context.Context) (token string, cached bool, err error) {
	if c.reuse {
		value, found, err := c.sessions.Get(ctx, c.sessionKey())
		if err != nil {
			logging.Warn(ctx, "bluesky session cache read failed", slog.Any("err", errs.Loggable(err)))
		} else if found {
			return value, true, nil
		}
	}

	token, err = c.login(ctx)
	if err != nil {
		return "", false, err
	}
	c.storeSession(ctx, token)
	return token, false, nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(createSessionRequest{Identifier: c.Identifier(), Password: c.password})
	if err != nil {
		return "", errs.Wrap(err, "encode session request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+createSessionPath, bytes.NewReader(body))
	if err != nil {
		return "", errs.Wrap(err, "create session request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Mark(errs.ErrUpstream, err, "create bluesky session")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError("create bluesky session", resp)
	}

	var out createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errs.Mark(errs.ErrUpstream, err, "decode bluesky session")
	}
	if out.AccessJwt == "" {
		return "", errs.Mark(errs.ErrUpstream, nil, "bluesky session has no access token")
	}
	return out.AccessJwt, nil
}

func (c *Client) search(ctx context.Context, token string, query string) ([]json.RawMessage, int, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(c.pageSize)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+searchPostsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, errs.Wrap(err, "create search request")
	}

	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authed := oauth2.NewClient(httpCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	authed.Timeout = c.httpClient.Timeout

	resp, err := authed.Do(req)
	if err != nil {
		return nil, 0, errs.Mark(errs.ErrUpstream, err, "search bluesky posts")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, statusError("search bluesky posts", resp)
	}

	var out searchPostsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, errs.Mark(errs.ErrUpstream, err, "decode bluesky search")
	}
	if out.Posts == nil {
		out.Posts = []json.RawMessage{}
	}
	return out.Posts, resp.StatusCode, nil
}

func (c *Client) sessionKey() string {
	return sessionKeyPrefix + c.Identifier()
}

func (c *Client) storeSession(ctx context.Context, token string) {
	if !c.reuse {
		return
	}
	if err := c.sessions.Set(ctx, c.sessionKey(), token, c.sessionTTL); err != nil {
		logging.Warn(ctx, "bluesky session cache write failed", slog.Any("err", errs.Loggable(err)))
	}
}

func (c *Client) dropSession(ctx context.Context) {
	if err := c.sessions.Delete(ctx, c.sessionKey()); err != nil {
		logging.Warn(ctx, "bluesky session cache clear failed", slog.Any("err", errs.Loggable(err)))
	}
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return errs.Mark(errs.ErrUpstream, nil, fmt.Sprintf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body))))
}

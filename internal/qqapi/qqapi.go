// Package qqapi is the outbound QQ guild-bot HTTP API client: list
// channels, reply to a channel message, publish a thread, and fetch the
// WebSocket gateway URL. It is a narrow collaborator the command
// controller and WebSocket engine depend on through the Client interface.
package qqapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rustcc-bot/qbot-gateway/internal/apierr"
)

// ProductionBaseURL and SandboxBaseURL are the two api_base values named
// in the external interfaces section.
const (
	ProductionBaseURL = "https://api.sgroup.qq.com"
	SandboxBaseURL    = "https://sandbox.api.sgroup.qq.com"
)

// Channel is a guild channel as returned by the list-channels endpoint.
type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`
}

// TokenSource supplies the bearer token to authenticate outbound
// requests; internal/auth.Authorizer satisfies this.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Client is the narrow set of outbound operations the controller and
// engine need from the platform's HTTP API.
type Client interface {
	ListChannels(ctx context.Context, guildID string) ([]Channel, error)
	ReplyTextToChannelMessage(ctx context.Context, msgID, channelID, content string) error
	SendChannelThreadHTML(ctx context.Context, channelID, title, html string) error
	GetGatewayURL(ctx context.Context) (string, error)
}

// HTTPClient is the real Client implementation, a thin reqwest-style
// wrapper around net/http with the platform's bearer-token header.
type HTTPClient struct {
	baseURL    string
	appID      string
	authorizer TokenSource
	httpClient *http.Client
}

// NewHTTPClient builds a Client against baseURL (ProductionBaseURL or
// SandboxBaseURL), authenticating with authorizer.
func NewHTTPClient(baseURL, appID string, authorizer TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		appID:      appID,
		authorizer: authorizer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qqapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("qqapi: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Union-Appid", c.appID)

	token, err := c.authorizer.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("qqapi: get access token: %w", err)
	}
	req.Header.Set("Authorization", "QQBot "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qqapi: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.FromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qqapi: decode response: %w", err)
	}
	return nil
}

// ListChannels lists the channels in a guild.
func (c *HTTPClient) ListChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

type replyTextRequest struct {
	MsgID   string `json:"msg_id"`
	Content string `json:"content"`
}

// ReplyTextToChannelMessage replies to an inbound channel message. Per
// the platform's content restrictions, every ASCII '.' in content is
// substituted with the full-width '。' before sending.
func (c *HTTPClient) ReplyTextToChannelMessage(ctx context.Context, msgID, channelID, content string) error {
	req := replyTextRequest{
		MsgID:   msgID,
		Content: strings.ReplaceAll(content, ".", "。"),
	}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", req, &struct{}{})
}

type sendThreadRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Format  int    `json:"format"`
}

type sendThreadResponse struct {
	TaskID     string `json:"task_id"`
	CreateTime string `json:"create_time"`
}

// SendChannelThreadHTML publishes a rich-text thread into channelID.
func (c *HTTPClient) SendChannelThreadHTML(ctx context.Context, channelID, title, html string) error {
	req := sendThreadRequest{Title: title, Content: html, Format: 2}
	var res sendThreadResponse
	return c.do(ctx, http.MethodPut, "/channels/"+channelID+"/threads", req, &res)
}

type gatewayResponse struct {
	URL string `json:"url"`
}

// GetGatewayURL fetches the WebSocket URL to connect to.
func (c *HTTPClient) GetGatewayURL(ctx context.Context) (string, error) {
	var res gatewayResponse
	if err := c.do(ctx, http.MethodGet, "/gateway", nil, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

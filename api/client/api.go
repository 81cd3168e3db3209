package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/lib/dash"
)

// --------------------------------------------------------------------------
// Health & generated data
// --------------------------------------------------------------------------

func (c *Client) Health(ctx context.Context) (common.HealthResult, error) {
	return invoke[common.HealthResult](ctx, c, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) Metrics(ctx context.Context, platform dash.Platform) (common.PlatformMetricsResult, error) {
	return invoke[common.PlatformMetricsResult](ctx, c, http.MethodGet, "/api/metrics/"+url.PathEscape(string(platform)), nil, nil)
}

func (c *Client) AllMetrics(ctx context.Context) ([]dash.PlatformData, error) {
	return invoke[[]dash.PlatformData](ctx, c, http.MethodGet, "/api/metrics/all", nil, nil)
}

func (c *Client) Regional(ctx context.Context) ([]dash.RegionalMetric, error) {
	return invoke[[]dash.RegionalMetric](ctx, c, http.MethodGet, "/api/metrics/regional", nil, nil)
}

func (c *Client) Triggered(ctx context.Context) ([]dash.TriggeredAlert, error) {
	return invoke[[]dash.TriggeredAlert](ctx, c, http.MethodGet, "/api/alerts/triggered", nil, nil)
}

// --------------------------------------------------------------------------
// Alerts
// --------------------------------------------------------------------------

func (c *Client) Alerts(ctx context.Context) ([]dash.AlertConfiguration, error) {
	return invoke[[]dash.AlertConfiguration](ctx, c, http.MethodGet, "/api/alerts", nil, nil)
}

// SaveAlerts replaces all alert configurations.
func (c *Client) SaveAlerts(ctx context.Context, configs []dash.AlertConfiguration) error {
	if configs == nil {
		configs = []dash.AlertConfiguration{}
	}
	_, err := invoke[common.SaveAlertsResult](ctx, c, http.MethodPost, "/api/alerts", nil, configs)
	return err
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

// Users returns one page of users. An empty cursor starts at the beginning, a limit <= 0
// uses the server's page size.
func (c *Client) Users(ctx context.Context, cursor string, limit int) (common.Page[dash.User], error) {
	return invoke[common.Page[dash.User]](ctx, c, http.MethodGet, "/api/users", pageQuery(cursor, limit), nil)
}

func (c *Client) CreateUser(ctx context.Context, name string) (dash.User, error) {
	return invoke[dash.User](ctx, c, http.MethodPost, "/api/users", nil, common.CreateUserRequest{Name: &name})
}

func (c *Client) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := invoke[common.DeleteResult](ctx, c, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil)
	return res.Deleted, err
}

func (c *Client) DeleteUsers(ctx context.Context, ids []string) (int, error) {
	res, err := invoke[common.DeleteManyResult](ctx, c, http.MethodPost, "/api/users/deleteMany", nil, deleteMany(ids))
	return res.DeletedCount, err
}

// --------------------------------------------------------------------------
// Chats
// --------------------------------------------------------------------------

func (c *Client) Chats(ctx context.Context, cursor string, limit int) (common.Page[dash.Chat], error) {
	return invoke[common.Page[dash.Chat]](ctx, c, http.MethodGet, "/api/chats", pageQuery(cursor, limit), nil)
}

func (c *Client) CreateChat(ctx context.Context, title string) (dash.Chat, error) {
	return invoke[dash.Chat](ctx, c, http.MethodPost, "/api/chats", nil, common.CreateChatRequest{Title: &title})
}

func (c *Client) DeleteChat(ctx context.Context, id string) (bool, error) {
	res, err := invoke[common.DeleteResult](ctx, c, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil, nil)
	return res.Deleted, err
}

func (c *Client) DeleteChats(ctx context.Context, ids []string) (int, error) {
	res, err := invoke[common.DeleteManyResult](ctx, c, http.MethodPost, "/api/chats/deleteMany", nil, deleteMany(ids))
	return res.DeletedCount, err
}

func (c *Client) Messages(ctx context.Context, chatID string) ([]dash.ChatMessage, error) {
	return invoke[[]dash.ChatMessage](ctx, c, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, chatID, userID, text string) (dash.ChatMessage, error) {
	req := common.SendMessageRequest{UserID: &userID, Text: &text}
	return invoke[dash.ChatMessage](ctx, c, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, req)
}

func deleteMany(ids []string) common.DeleteManyRequest {
	req := common.DeleteManyRequest{IDs: make([]any, len(ids))}
	for i, id := range ids {
		req.IDs[i] = id
	}
	return req
}

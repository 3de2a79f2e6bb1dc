// API service for the music service's REST endpoints
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// APIService implements [Backend] over HTTP.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

var _ Backend = (*APIService)(nil)

// NewAPIService creates a new API service instance.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// NewAuthenticatedAPIService creates an API service whose requests carry token as a bearer credential.
func NewAuthenticatedAPIService(ctx context.Context, baseURL, token string) *APIService {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return NewAPIService(baseURL, oauth2.NewClient(ctx, src))
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.Raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.Raw(ctx, http.MethodPost, path, data)
}

// Raw performs a request and returns the response without interpreting the status code.
func (a *APIService) Raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}
	return apiResp, nil
}

// doRequest sends body as JSON and decodes a 2xx response into result. Non-2xx responses become [HTTPError].
func (a *APIService) doRequest(ctx context.Context, method, path string, body, result any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := a.Raw(ctx, method, path, data)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if result != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// errorMessage prefers the API's {"error": "..."} or {"message": "..."} body over the raw text.
func errorMessage(resp *APIResponse) string {
	if m, ok := resp.JSONData.(map[string]any); ok {
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(resp.Body))
}

func (a *APIService) get(ctx context.Context, path string, result any) error {
	return a.doRequest(ctx, http.MethodGet, path, nil, result)
}

func (a *APIService) post(ctx context.Context, path string, body, result any) error {
	return a.doRequest(ctx, http.MethodPost, path, body, result)
}

func (a *APIService) delete(ctx context.Context, path string) error {
	return a.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// Notifications fetches one page of the user's notifications and the unread badge count.
func (a *APIService) Notifications(ctx context.Context, userID string, limit, offset int) (*models.NotificationPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var page models.NotificationPage
	if err := a.get(ctx, "/api/users/"+url.PathEscape(userID)+"/notifications?"+q.Encode(), &page); err != nil {
		return nil, fmt.Errorf("services.Notifications: %w", err)
	}
	return &page, nil
}

// MarkAsRead marks one notification read and returns it as stored.
func (a *APIService) MarkAsRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	var n models.Notification
	if err := a.post(ctx, "/api/notifications/"+url.PathEscape(notificationID)+"/read", nil, &n); err != nil {
		return nil, fmt.Errorf("services.MarkAsRead: %w", err)
	}
	return &n, nil
}

// MarkAllAsRead marks every notification of the user read.
func (a *APIService) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := a.post(ctx, "/api/users/"+url.PathEscape(userID)+"/notifications/read", nil, nil); err != nil {
		return fmt.Errorf("services.MarkAllAsRead: %w", err)
	}
	return nil
}

// MarkAsHandled marks a notification handled, removing it from the active list.
func (a *APIService) MarkAsHandled(ctx context.Context, notificationID string) (*models.Notification, error) {
	var n models.Notification
	if err := a.post(ctx, "/api/notifications/"+url.PathEscape(notificationID)+"/handled", nil, &n); err != nil {
		return nil, fmt.Errorf("services.MarkAsHandled: %w", err)
	}
	return &n, nil
}

// DeleteNotification deletes one notification. Deleting a missing notification succeeds.
func (a *APIService) DeleteNotification(ctx context.Context, notificationID string) error {
	err := a.delete(ctx, "/api/notifications/"+url.PathEscape(notificationID))
	if err != nil && !IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("services.DeleteNotification: %w", err)
	}
	return nil
}

// DeleteAllNotifications deletes every notification of the user.
func (a *APIService) DeleteAllNotifications(ctx context.Context, userID string) error {
	if err := a.delete(ctx, "/api/users/"+url.PathEscape(userID)+"/notifications"); err != nil {
		return fmt.Errorf("services.DeleteAllNotifications: %w", err)
	}
	return nil
}

// Chats lists the user's chats.
func (a *APIService) Chats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	if err := a.get(ctx, "/api/users/"+url.PathEscape(userID)+"/chats", &chats); err != nil {
		return nil, fmt.Errorf("services.Chats: %w", err)
	}
	return chats, nil
}

// ChatMessages lists the messages of a chat.
func (a *APIService) ChatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := a.get(ctx, "/api/chats/"+url.PathEscape(chatID)+"/messages", &msgs); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("services.ChatMessages: %w: %s", shared.ErrChatNotFound, chatID)
		}
		return nil, fmt.Errorf("services.ChatMessages: %w", err)
	}
	return msgs, nil
}

// SendMessage posts a message and returns it with its server id.
func (a *APIService) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	var msg models.Message
	if err := a.post(ctx, "/api/chats/"+url.PathEscape(req.ChatID)+"/messages", req, &msg); err != nil {
		return nil, fmt.Errorf("services.SendMessage: %w", err)
	}
	return &msg, nil
}

// MarkChatRead marks every message of a chat read for the user.
func (a *APIService) MarkChatRead(ctx context.Context, chatID, userID string) error {
	body := map[string]string{"userId": userID}
	if err := a.post(ctx, "/api/chats/"+url.PathEscape(chatID)+"/read", body, nil); err != nil {
		return fmt.Errorf("services.MarkChatRead: %w", err)
	}
	return nil
}

// UnreadMessageCounts returns per-chat unread counts with the total under [models.GlobalUnread].
func (a *APIService) UnreadMessageCounts(ctx context.Context, userID string) (models.UnreadCounts, error) {
	counts := models.UnreadCounts{}
	if err := a.get(ctx, "/api/users/"+url.PathEscape(userID)+"/unread-counts", &counts); err != nil {
		return nil, fmt.Errorf("services.UnreadMessageCounts: %w", err)
	}
	if _, ok := counts[models.GlobalUnread]; !ok {
		total := 0
		for _, n := range counts {
			total += n
		}
		counts[models.GlobalUnread] = total
	}
	return counts, nil
}

// FriendRequests lists pending and settled requests involving the user.
func (a *APIService) FriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := a.get(ctx, "/api/users/"+url.PathEscape(userID)+"/friend-requests", &reqs); err != nil {
		return nil, fmt.Errorf("services.FriendRequests: %w", err)
	}
	return reqs, nil
}

// SendFriendRequest invites toUserID. A duplicate request is rejected with 409.
func (a *APIService) SendFriendRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error) {
	body := map[string]string{"fromUserId": fromUserID, "toUserId": toUserID}
	var req models.FriendRequest
	if err := a.post(ctx, "/api/friend-requests", body, &req); err != nil {
		return nil, fmt.Errorf("services.SendFriendRequest: %w", err)
	}
	return &req, nil
}

// RespondFriendRequest accepts or declines a request.
func (a *APIService) RespondFriendRequest(ctx context.Context, requestID string, accept bool) (*models.FriendRequest, error) {
	body := map[string]bool{"accept": accept}
	var req models.FriendRequest
	if err := a.post(ctx, "/api/friend-requests/"+url.PathEscape(requestID)+"/respond", body, &req); err != nil {
		return nil, fmt.Errorf("services.RespondFriendRequest: %w", err)
	}
	return &req, nil
}

// Friends lists the user's friends with their presence.
func (a *APIService) Friends(ctx context.Context, userID string) ([]models.Friend, error) {
	var friends []models.Friend
	if err := a.get(ctx, "/api/users/"+url.PathEscape(userID)+"/friends", &friends); err != nil {
		return nil, fmt.Errorf("services.Friends: %w", err)
	}
	return friends, nil
}

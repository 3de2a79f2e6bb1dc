// package services defines the REST collaborator of the hub and an HTTP implementation of it
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tunesync/internal/models"
)

// Backend is the music service's REST API as the hub uses it.
//
// MarkAsRead, MarkAsHandled and the delete calls are idempotent so they can be retried.
type Backend interface {
	Notifications(ctx context.Context, userID string, limit, offset int) (*models.NotificationPage, error)
	MarkAsRead(ctx context.Context, notificationID string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) error
	MarkAsHandled(ctx context.Context, notificationID string) (*models.Notification, error)
	DeleteNotification(ctx context.Context, notificationID string) error
	DeleteAllNotifications(ctx context.Context, userID string) error

	Chats(ctx context.Context, userID string) ([]models.Chat, error)
	ChatMessages(ctx context.Context, chatID string) ([]models.Message, error)
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
	MarkChatRead(ctx context.Context, chatID, userID string) error
	UnreadMessageCounts(ctx context.Context, userID string) (models.UnreadCounts, error)

	FriendRequests(ctx context.Context, userID string) ([]models.FriendRequest, error)
	SendFriendRequest(ctx context.Context, fromUserID, toUserID string) (*models.FriendRequest, error)
	RespondFriendRequest(ctx context.Context, requestID string, accept bool) (*models.FriendRequest, error)
	Friends(ctx context.Context, userID string) ([]models.Friend, error)
}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err wraps an [HTTPError] with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// IsClientError reports whether err wraps a 4xx [HTTPError], meaning a retry would fail the same way.
func IsClientError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) &&
		httpErr.StatusCode >= http.StatusBadRequest && httpErr.StatusCode < http.StatusInternalServerError
}

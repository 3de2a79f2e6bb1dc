package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")

	// API and service errors
	ErrAPIRequest            = fmt.Errorf("API request failed")
	ErrServiceUnavailable    = fmt.Errorf("service unavailable")
	ErrNotificationNotFound  = fmt.Errorf("notification not found")
	ErrChatNotFound          = fmt.Errorf("chat not found")
	ErrMessageNotFound       = fmt.Errorf("message not found")
	ErrFriendRequestNotFound = fmt.Errorf("friend request not found")

	// Channel errors
	ErrTransport      = fmt.Errorf("transport error")
	ErrNotConnected   = fmt.Errorf("channel not connected")
	ErrSendBufferFull = fmt.Errorf("send buffer full")
	ErrUnknownChannel = fmt.Errorf("unknown channel")
	ErrUnknownEvent   = fmt.Errorf("unknown event kind")
	ErrHubClosed      = fmt.Errorf("hub closed")

	// Mutation errors
	ErrMutationRejected = fmt.Errorf("mutation rejected")
	ErrMutationTimeout  = fmt.Errorf("mutation timed out")
	ErrMutationFailed   = fmt.Errorf("mutation failed")
	ErrStaleData        = fmt.Errorf("stale data")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

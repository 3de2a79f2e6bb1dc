package models

import "time"

// FriendRequestStatus is the state of a friend request.
type FriendRequestStatus string

const (
	RequestPending  FriendRequestStatus = "pending"
	RequestAccepted FriendRequestStatus = "accepted"
	RequestDeclined FriendRequestStatus = "declined"
)

// FriendRequest is an invitation from one user to another.
type FriendRequest struct {
	ID         string              `json:"id"`
	FromUserID string              `json:"fromUserId"`
	ToUserID   string              `json:"toUserId"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"createdAt"`
	Version    int64               `json:"version"`
}

// Friend is an accepted connection and their last known presence.
type Friend struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

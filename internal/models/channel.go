package models

import (
	"fmt"

	"github.com/desertthunder/tunesync/internal/shared"
)

// Channel names one logical push stream.
type Channel string

const (
	ChannelNotifications Channel = "notifications"
	ChannelChat          Channel = "chat"
	ChannelPresence      Channel = "friend-presence"
)

// Channels lists every channel the client knows how to open.
func Channels() []Channel {
	return []Channel{ChannelNotifications, ChannelChat, ChannelPresence}
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	for _, ch := range Channels() {
		if string(ch) == s {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrUnknownChannel, s)
}

// ConnState is the connection state of a channel.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name so snapshots and events stay readable.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *ConnState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = Disconnected
	case "connecting":
		*s = Connecting
	case "connected":
		*s = Connected
	case "reconnecting":
		*s = Reconnecting
	default:
		return fmt.Errorf("%w: connection state %q", shared.ErrInvalidInput, string(text))
	}
	return nil
}

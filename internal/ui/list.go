package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/notify"
)

var (
	_ list.Item = notificationItem{}
	_ list.Item = chatItem{}
	_ list.Item = messageItem{}
)

// notificationItem wraps [models.Notification] to implement [list.Item].
type notificationItem struct {
	note models.Notification
}

func (i notificationItem) FilterValue() string { return notify.Body(i.note) }
func (i notificationItem) Title() string {
	title := notify.Title(i.note)
	if i.note.Unread() {
		return styles.unread.Render("● " + title)
	}
	return "  " + title
}
func (i notificationItem) Description() string {
	return fmt.Sprintf("  %s • %s", notify.Body(i.note), i.note.CreatedAt.Local().Format("Jan 2 15:04"))
}

// chatItem wraps [models.Chat] to implement [list.Item].
type chatItem struct {
	chat   models.Chat
	self   string
	unread int
	online map[string]bool
}

func (i chatItem) others() []string {
	others := make([]string, 0, len(i.chat.Participants))
	for _, p := range i.chat.Participants {
		if p == i.self {
			continue
		}
		if i.online[p] {
			p += " ●"
		}
		others = append(others, p)
	}
	return others
}

func (i chatItem) FilterValue() string { return strings.Join(i.chat.Participants, " ") }
func (i chatItem) Title() string {
	title := strings.Join(i.others(), ", ")
	if i.unread > 0 {
		return styles.unread.Render(fmt.Sprintf("%s (%d)", title, i.unread))
	}
	return title
}
func (i chatItem) Description() string {
	if i.chat.LastMessage == "" {
		return "no messages yet"
	}
	return fmt.Sprintf("%s: %s", i.chat.LastSenderID, i.chat.LastMessage)
}

// messageItem wraps [models.Message] to implement [list.Item].
type messageItem struct {
	msg models.Message
}

func (i messageItem) FilterValue() string { return i.msg.Content }
func (i messageItem) Title() string {
	return fmt.Sprintf("%s  %s", i.msg.SenderID, styles.help.Render(i.msg.Timestamp.Local().Format("15:04")))
}
func (i messageItem) Description() string {
	desc := i.msg.Content
	if len(i.msg.Reactions) > 0 {
		emoji := make([]string, len(i.msg.Reactions))
		for n, r := range i.msg.Reactions {
			emoji[n] = r.Emoji
		}
		desc = fmt.Sprintf("%s  %s", desc, strings.Join(emoji, ""))
	}
	if i.msg.Pending() {
		desc += styles.help.Render("  sending…")
	}
	return desc
}

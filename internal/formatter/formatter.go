// package formatter renders mirrored state for the CLI as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts the --format flag values. An empty string selects [Text].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", Text:
		return Text, nil
	case "md", Markdown:
		return Markdown, nil
	case CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

const timeLayout = "2006-01-02 15:04"

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// NotificationsToCSV writes columns: ID, Kind, Status, Sender, Preview, Created
func NotificationsToCSV(notes []models.Notification) ([]byte, error) {
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, []string{
			n.ID, string(n.Kind), string(n.Status), n.Payload.SenderID, n.Payload.Preview,
			n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV([]string{"ID", "Kind", "Status", "Sender", "Preview", "Created"}, rows)
}

// NotificationsToMarkdown renders the notification list with its unread badge.
func NotificationsToMarkdown(notes []models.Notification, unread int) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Notifications\n\n")
	buf.WriteString(fmt.Sprintf("**Unread**: %d\n\n", unread))

	for _, n := range notes {
		box := "x"
		if n.Unread() {
			box = " "
		}
		buf.WriteString(fmt.Sprintf("- [%s] **%s** %s (%s)", box, n.Kind, describe(n), stamp(n.CreatedAt)))
		buf.WriteString(fmt.Sprintf(" `%s`\n", n.ID))
	}

	return buf.Bytes(), nil
}

// NotificationsToText renders one line per notification, unread ones marked with an asterisk.
func NotificationsToText(notes []models.Notification, unread int) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Notifications: %d (%d unread)\n\n", len(notes), unread))
	for _, n := range notes {
		mark := " "
		if n.Unread() {
			mark = "*"
		}
		buf.WriteString(fmt.Sprintf("%s %s  %-24s %s\n", mark, stamp(n.CreatedAt), n.Kind, describe(n)))
	}

	return buf.Bytes(), nil
}

func describe(n models.Notification) string {
	var parts []string
	if n.Payload.SenderID != "" {
		parts = append(parts, "from "+n.Payload.SenderID)
	}
	if n.Payload.Preview != "" {
		parts = append(parts, strconv.Quote(n.Payload.Preview))
	}
	if len(parts) == 0 {
		return n.ID
	}
	return strings.Join(parts, " ")
}

// ChatsToCSV writes columns: ID, Participants, Unread, LastSender, LastMessage, LastActivity
func ChatsToCSV(chats []models.Chat, unread models.UnreadCounts) ([]byte, error) {
	rows := make([][]string, 0, len(chats))
	for _, c := range chats {
		activity := ""
		if !c.LastActivity.IsZero() {
			activity = c.LastActivity.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			c.ID, strings.Join(c.Participants, ";"), strconv.Itoa(unread[c.ID]), c.LastSenderID, c.LastMessage, activity,
		})
	}
	return writeCSV([]string{"ID", "Participants", "Unread", "LastSender", "LastMessage", "LastActivity"}, rows)
}

// ChatsToText renders one line per chat with its unread count.
func ChatsToText(chats []models.Chat, unread models.UnreadCounts) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Chats: %d (%d unread messages)\n\n", len(chats), unread.Global()))
	for _, c := range chats {
		buf.WriteString(fmt.Sprintf("%-12s %s  [%d]  %s\n", c.ID, stamp(c.LastActivity), unread[c.ID], strings.Join(c.Participants, ", ")))
		if c.LastMessage != "" {
			buf.WriteString(fmt.Sprintf("             %s: %s\n", c.LastSenderID, c.LastMessage))
		}
	}

	return buf.Bytes(), nil
}

// MessagesToMarkdown renders a chat transcript.
func MessagesToMarkdown(chat models.Chat, msgs []models.Message) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Chat %s\n\n", chat.ID))
	buf.WriteString(fmt.Sprintf("**Participants**: %s\n", strings.Join(chat.Participants, ", ")))
	buf.WriteString(fmt.Sprintf("**Messages**: %d\n\n", len(msgs)))

	for _, m := range msgs {
		buf.WriteString(fmt.Sprintf("**%s** _%s_: %s%s\n", m.SenderID, stamp(m.Timestamp), m.Content, reactions(m.Reactions)))
	}

	return buf.Bytes(), nil
}

// MessagesToText renders one line per message. Unconfirmed messages are suffixed with "(sending)".
func MessagesToText(chat models.Chat, msgs []models.Message) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Chat: %s (%s)\n\n", chat.ID, strings.Join(chat.Participants, ", ")))
	for _, m := range msgs {
		line := fmt.Sprintf("[%s] %s: %s%s", stamp(m.Timestamp), m.SenderID, m.Content, reactions(m.Reactions))
		if m.Pending() {
			line += " (sending)"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// MessagesToCSV writes columns: ID, Sender, Content, Timestamp, Read, Reactions
func MessagesToCSV(msgs []models.Message) ([]byte, error) {
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, []string{
			m.ID, m.SenderID, m.Content, m.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatBool(m.IsRead), strings.TrimSpace(reactions(m.Reactions)),
		})
	}
	return writeCSV([]string{"ID", "Sender", "Content", "Timestamp", "Read", "Reactions"}, rows)
}

func reactions(rs []models.Reaction) string {
	if len(rs) == 0 {
		return ""
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.Emoji + " " + r.UserID
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

// FriendRequestsToText renders requests split into received and sent for userID.
func FriendRequestsToText(userID string, reqs []models.FriendRequest) ([]byte, error) {
	var buf bytes.Buffer
	var received, sent []models.FriendRequest
	for _, r := range reqs {
		if r.ToUserID == userID {
			received = append(received, r)
		} else {
			sent = append(sent, r)
		}
	}

	buf.WriteString(fmt.Sprintf("Received: %d\n", len(received)))
	for _, r := range received {
		buf.WriteString(fmt.Sprintf("  %s  from %s  %s\n", r.ID, r.FromUserID, r.Status))
	}
	buf.WriteString(fmt.Sprintf("Sent: %d\n", len(sent)))
	for _, r := range sent {
		buf.WriteString(fmt.Sprintf("  %s  to %s  %s\n", r.ID, r.ToUserID, r.Status))
	}

	return buf.Bytes(), nil
}

// FriendRequestsToCSV writes columns: ID, From, To, Status, Created
func FriendRequestsToCSV(reqs []models.FriendRequest) ([]byte, error) {
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, []string{r.ID, r.FromUserID, r.ToUserID, string(r.Status), r.CreatedAt.UTC().Format(time.RFC3339)})
	}
	return writeCSV([]string{"ID", "From", "To", "Status", "Created"}, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range rows {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// Notifications renders notes in format.
func Notifications(f Format, notes []models.Notification, unread int) ([]byte, error) {
	switch f {
	case CSV:
		return NotificationsToCSV(notes)
	case Markdown:
		return NotificationsToMarkdown(notes, unread)
	case JSON:
		return shared.MarshalJSON(notes, true)
	default:
		return NotificationsToText(notes, unread)
	}
}

// Chats renders chats in format. Markdown falls back to text.
func Chats(f Format, chats []models.Chat, unread models.UnreadCounts) ([]byte, error) {
	switch f {
	case CSV:
		return ChatsToCSV(chats, unread)
	case JSON:
		return shared.MarshalJSON(chats, true)
	default:
		return ChatsToText(chats, unread)
	}
}

// Messages renders a chat transcript in format.
func Messages(f Format, chat models.Chat, msgs []models.Message) ([]byte, error) {
	switch f {
	case CSV:
		return MessagesToCSV(msgs)
	case Markdown:
		return MessagesToMarkdown(chat, msgs)
	case JSON:
		return shared.MarshalJSON(msgs, true)
	default:
		return MessagesToText(chat, msgs)
	}
}

// FriendRequests renders requests in format. Markdown falls back to text.
func FriendRequests(f Format, userID string, reqs []models.FriendRequest) ([]byte, error) {
	switch f {
	case CSV:
		return FriendRequestsToCSV(reqs)
	case JSON:
		return shared.MarshalJSON(reqs, true)
	default:
		return FriendRequestsToText(userID, reqs)
	}
}

// WriteFile writes data to path. An empty path is a no-op.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

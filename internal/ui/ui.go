package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/bridge"
	"github.com/desertthunder/tunesync/internal/hub"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/mutations"
	"github.com/desertthunder/tunesync/internal/notify"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	NotificationsView ViewState = iota
	ChatsView
	MessagesView
)

// HandlerKey is the key the TUI registers its handlers under on every channel.
const HandlerKey = "tui"

const (
	eventBuffer     = 256
	optimisticDelay = 30 * time.Millisecond
	defaultReaction = "👍"
)

// Client is the part of [hub.Hub] the TUI consumes.
type Client interface {
	UserID() string
	Read() *models.Snapshot
	Bus() *bridge.Bus
	SetHandlers(ch models.Channel, key string, h hub.Handler) error
	RemoveHandlers(ch models.Channel, key string)
	Apply(ctx context.Context, m mutations.Mutation) (*mutations.Result, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	client Client
	view   ViewState
	width  int
	height int

	snap     *models.Snapshot
	notes    list.Model
	chats    list.Model
	messages list.Model
	chatID   string
	input    textinput.Model

	events chan tea.Msg
	subs   []*bridge.Subscription

	status string
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model reading from client.
func NewModel(ctx context.Context, client Client) *Model {
	input := textinput.New()
	input.Placeholder = "Write a message"
	input.CharLimit = 2000

	m := &Model{
		ctx:      ctx,
		client:   client,
		view:     NotificationsView,
		notes:    newList("Notifications"),
		chats:    newList("Chats"),
		messages: newList(""),
		input:    input,
		events:   make(chan tea.Msg, eventBuffer),
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.refresh()
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Start registers the TUI on every channel and subscribes to the bridge topics it displays.
func (m *Model) Start() error {
	handler := hub.EventFunc(func(ev models.Event) { m.push(hubEventMsg(ev)) })
	for _, ch := range models.Channels() {
		if err := m.client.SetHandlers(ch, HandlerKey, handler); err != nil {
			m.Stop()
			return fmt.Errorf("failed to register on %s: %w", ch, err)
		}
	}

	bus := m.client.Bus()
	m.subs = append(m.subs,
		bridge.Subscribe(bus, bridge.MutationRolledBack, func(rb bridge.Rollback) { m.push(rolledBackMsg(rb)) }),
		bridge.Subscribe(bus, bridge.StaleData, func(ids []string) { m.push(staleMsg(ids)) }),
	)
	return nil
}

// Stop removes everything [Model.Start] registered.
func (m *Model) Stop() {
	for _, ch := range models.Channels() {
		m.client.RemoveHandlers(ch, HandlerKey)
	}
	for _, s := range m.subs {
		m.client.Bus().Unsubscribe(s)
	}
	m.subs = nil
}

// push hands msg to the bubbletea loop without blocking the dispatching goroutine.
// Dropped messages only cost a status line since every event rereads the whole snapshot.
func (m *Model) push(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Init starts listening for hub events.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgHubEvent:
			cmd := m.onHubEvent(msg.data.(models.Event))
			m.refresh()
			return m, tea.Batch(cmd, m.waitForEvent())

		case MsgRolledBack:
			rb := msg.data.(bridge.Rollback)
			m.setError(fmt.Errorf("%s %s was undone: %w", strings.ReplaceAll(rb.Kind, "_", " "), rb.Target, rb.Err))
			m.refresh()
			return m, m.waitForEvent()

		case MsgStale:
			ids := msg.data.([]string)
			m.status = styles.warn.Render(fmt.Sprintf("%d local changes replaced by newer data", len(ids)))
			return m, m.waitForEvent()

		case MsgMutationDone:
			data := msg.data.(struct {
				mutation mutations.Mutation
				result   *mutations.Result
				err      error
			})
			switch {
			case data.err != nil:
				m.setError(data.err)
			case data.result != nil && data.result.NoOp:
				m.status = styles.help.Render("nothing to do")
			default:
				m.status = ""
			}
			m.refresh()
			return m, nil

		case MsgRefresh:
			m.refresh()
			return m, nil
		}
	}

	return m.updateLists(msg)
}

func (m *Model) onHubEvent(ev models.Event) tea.Cmd {
	switch ev := ev.(type) {
	case models.NewNotification:
		m.status = styles.ok.Render(notify.Title(ev.Notification))
	case models.MessageReceived:
		if m.view == MessagesView && ev.Message.ChatID == m.chatID && ev.Message.SenderID != m.client.UserID() {
			return m.apply(mutations.MarkChatRead(m.chatID))
		}
	}
	return nil
}

func (m *Model) setError(err error) {
	var merr *mutations.Error
	if errors.As(err, &merr) {
		err = merr.Err
	}
	m.status = styles.err.Render(fmt.Sprintf("Error: %v", err))
}

// refresh rebuilds every list from the current snapshot.
func (m *Model) refresh() {
	m.snap = m.client.Read()
	self := m.client.UserID()

	notes := make([]list.Item, len(m.snap.Notifications))
	for i, n := range m.snap.Notifications {
		notes[i] = notificationItem{note: n}
	}
	m.notes.SetItems(notes)
	m.notes.Title = fmt.Sprintf("Notifications (%d unread)", m.snap.UnreadNotifications)

	chats := make([]list.Item, len(m.snap.Chats))
	for i, c := range m.snap.Chats {
		chats[i] = chatItem{chat: c, self: self, unread: m.snap.UnreadMessages[c.ID], online: m.snap.Presence}
	}
	m.chats.SetItems(chats)
	m.chats.Title = fmt.Sprintf("Chats (%d unread)", m.snap.UnreadMessages.Global())

	if m.chatID != "" {
		msgs := m.snap.ChatMessages(m.chatID)
		items := make([]list.Item, len(msgs))
		for i, msg := range msgs {
			items[i] = messageItem{msg: msg}
		}
		m.messages.SetItems(items)
	}
}

func (m *Model) resize() {
	w, h := m.width-4, m.height-8
	m.notes.SetSize(w, h)
	m.chats.SetSize(w, h)
	m.messages.SetSize(w, h-2)
	m.input.Width = w - 4
}

func (m *Model) current() *list.Model {
	switch m.view {
	case ChatsView:
		return &m.chats
	case MessagesView:
		return &m.messages
	default:
		return &m.notes
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		return m.handleInputKeys(msg)
	}
	if m.current().SettingFilter() {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		if m.view == NotificationsView {
			m.view = ChatsView
		} else {
			m.view = NotificationsView
		}
		return m, nil
	}

	switch m.view {
	case NotificationsView:
		if cmd, ok := m.handleNotificationKeys(msg); ok {
			return m, cmd
		}
	case ChatsView:
		if key.Matches(msg, m.keys.enter) {
			if item, ok := m.chats.SelectedItem().(chatItem); ok {
				return m, m.openChat(item.chat.ID)
			}
		}
	case MessagesView:
		if cmd, ok := m.handleMessageKeys(msg); ok {
			return m, cmd
		}
	}

	return m.updateLists(msg)
}

func (m *Model) handleNotificationKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keys.readAll) {
		return m.apply(mutations.MarkAllRead()), true
	}
	if key.Matches(msg, m.keys.clear) {
		return m.apply(mutations.DeleteAll()), true
	}

	item, ok := m.notes.SelectedItem().(notificationItem)
	if !ok {
		return nil, false
	}
	switch {
	case key.Matches(msg, m.keys.read):
		return m.apply(mutations.MarkRead(item.note.ID)), true
	case key.Matches(msg, m.keys.handle):
		return m.apply(mutations.MarkHandled(item.note.ID)), true
	case key.Matches(msg, m.keys.remove):
		return m.apply(mutations.Delete(item.note.ID)), true
	case key.Matches(msg, m.keys.enter):
		cmds := []tea.Cmd{}
		if item.note.Unread() {
			cmds = append(cmds, m.apply(mutations.MarkRead(item.note.ID)))
		}
		if chatID := item.note.Payload.ChatID; chatID != "" {
			if _, ok := m.snap.Chat(chatID); ok {
				cmds = append(cmds, m.openChat(chatID))
			}
		}
		return tea.Batch(cmds...), true
	}
	return nil, false
}

func (m *Model) handleMessageKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = ChatsView
		m.chatID = ""
		return nil, true
	case key.Matches(msg, m.keys.compose):
		return m.input.Focus(), true
	case key.Matches(msg, m.keys.react):
		item, ok := m.messages.SelectedItem().(messageItem)
		if !ok || item.msg.Pending() {
			return nil, true
		}
		emoji := defaultReaction
		for _, r := range item.msg.Reactions {
			if r.UserID == m.client.UserID() && r.Emoji == defaultReaction {
				emoji = ""
			}
		}
		return m.apply(mutations.SendReaction(m.chatID, item.msg.ID, emoji)), true
	}
	return nil, false
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		content := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if content == "" {
			return m, nil
		}
		return m, m.apply(mutations.SendMessage(m.chatID, content))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openChat(chatID string) tea.Cmd {
	m.chatID = chatID
	m.view = MessagesView
	m.messages.Title = chatID
	if c, ok := m.snap.Chat(chatID); ok {
		m.messages.Title = strings.Join(chatItem{chat: c, self: m.client.UserID()}.others(), ", ")
	}
	m.refresh()
	if n := len(m.messages.Items()); n > 0 {
		m.messages.Select(n - 1)
	}

	if m.snap.UnreadMessages[chatID] > 0 {
		return m.apply(mutations.MarkChatRead(chatID))
	}
	return nil
}

// apply runs mut off the update loop. A refresh shortly after picks up the optimistic write before the server
// answers.
func (m *Model) apply(mut mutations.Mutation) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			result, err := m.client.Apply(m.ctx, mut)
			return mutationDoneMsg(mut, result, err)
		},
		tea.Tick(optimisticDelay, func(time.Time) tea.Msg { return refreshMsg() }),
	)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case NotificationsView:
		m.notes, cmd = m.notes.Update(msg)
	case ChatsView:
		m.chats, cmd = m.chats.Update(msg)
	case MessagesView:
		m.messages, cmd = m.messages.Update(msg)
	}
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	var helpKeys []key.Binding

	switch m.view {
	case NotificationsView:
		body = m.notes.View()
		helpKeys = []key.Binding{m.keys.enter, m.keys.read, m.keys.readAll, m.keys.handle, m.keys.remove, m.keys.next, m.keys.quit}
	case ChatsView:
		body = m.chats.View()
		helpKeys = []key.Binding{m.keys.enter, m.keys.next, m.keys.quit}
	case MessagesView:
		body = m.messages.View() + "\n" + m.input.View()
		helpKeys = []key.Binding{m.keys.compose, m.keys.react, m.keys.back, m.keys.quit}
		if m.input.Focused() {
			helpKeys = []key.Binding{m.keys.send, m.keys.back}
		}
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", m.header(), body, m.status, m.help.ShortHelpView(helpKeys))
}

func (m *Model) header() string {
	tabs := []string{"Notifications", "Chats"}
	active := 0
	if m.view != NotificationsView {
		active = 1
	}
	for i, t := range tabs {
		if i == active {
			tabs[i] = styles.active.Render(t)
		} else {
			tabs[i] = styles.tab.Render(t)
		}
	}
	return fmt.Sprintf("%s %s  %s", styles.title.Render("tunesync"), strings.Join(tabs, ""), m.connectionLine())
}

// connectionLine summarises every channel, leading with "Reconnecting…" while any channel is down.
func (m *Model) connectionLine() string {
	var badges []string
	reconnecting := false
	for _, ch := range models.Channels() {
		st := m.snap.State(ch)
		if st == models.Reconnecting {
			reconnecting = true
		}
		style := stateStyle(st == models.Connected, st == models.Connecting || st == models.Reconnecting)
		badges = append(badges, style.Render("● "+string(ch)))
	}

	line := strings.Join(badges, " ")
	if reconnecting {
		line = styles.warn.Render("Reconnecting…") + " " + line
	}
	return line
}

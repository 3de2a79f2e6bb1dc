package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/hub"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	tu "github.com/desertthunder/tunesync/internal/testing"
	"github.com/urfave/cli/v3"
)

// syncBuffer is a bytes.Buffer safe to read while handlers write to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestRunner(t *testing.T, backend *tu.FakeBackend, dialer *tu.FakeDialer) (*Runner, *syncBuffer) {
	t.Helper()
	config := shared.DefaultConfig()
	config.Identity.UserID = "u1"
	config.Database.Path = ":memory:"
	config.Hub.ResyncInterval = shared.Duration{Duration: time.Millisecond}

	if dialer == nil {
		dialer = tu.NewFakeDialer()
	}
	output := &syncBuffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Backend: backend,
		Dialer:  dialer,
		Output:  output,
		Logger:  shared.NewLogger(io.Discard),
	})
	t.Cleanup(func() { runner.Close() })
	return runner, output
}

func runApp(ctx context.Context, r *Runner, args ...string) error {
	app := &cli.Command{
		Name:      "tunesync",
		Commands:  r.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(ctx, append([]string{"tunesync"}, args...))
}

func seededBackend() *tu.FakeBackend {
	backend := tu.NewFakeBackend("u1")
	backend.AddNotification(models.Notification{ID: "n1", Kind: models.KindMessage,
		Payload: models.NotificationPayload{ChatID: "c1", SenderID: "u2", Preview: "hey"}})
	backend.AddNotification(models.Notification{ID: "n2", Kind: models.KindFriendRequest, Status: models.StatusRead,
		Payload: models.NotificationPayload{SenderID: "u3", RequestID: "r1"}})
	backend.AddChat(models.Chat{ID: "c1", Participants: []string{"u1", "u2"}})
	backend.AddMessage(models.Message{ID: "m1", ChatID: "c1", SenderID: "u2", Content: "hey"})
	backend.AddFriendRequest(models.FriendRequest{ID: "r1", FromUserID: "u3", ToUserID: "u1"})
	return backend
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := &services.APIService{}
			backend := tu.NewFakeBackend("u1")
			dialer := tu.NewFakeDialer()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				Backend:    backend,
				Dialer:     dialer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.backend != backend {
				t.Error("expected backend to be set")
			}
			if runner.dialer != dialer {
				t.Error("expected dialer to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with nil backend uses the API", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.api == nil {
				t.Fatal("expected a default API service")
			}
			if runner.backend != services.Backend(runner.api) {
				t.Error("expected backend to default to the API service")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writeOutput", func(t *testing.T) {
		t.Run("to stdout", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(io.Discard)})

			if err := runner.writeOutput("", []byte("ID\n")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "ID\n" {
				t.Errorf("expected data on output, got %q", output.String())
			}
		})

		t.Run("to file", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Logger: shared.NewLogger(io.Discard)})
			path := filepath.Join(t.TempDir(), "out.csv")

			if err := runner.writeOutput(path, []byte("ID\n")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			tu.AssertFileExists(t, path)
			if output.Len() != 0 {
				t.Errorf("expected nothing on output, got %q", output.String())
			}
		})
	})

	t.Run("openHub", func(t *testing.T) {
		t.Run("concurrent callers share one hub", func(t *testing.T) {
			runner, _ := newTestRunner(t, seededBackend(), tu.NewFakeDialer())

			const callers = 8
			hubs := make([]*hub.Hub, callers)
			errs := make([]error, callers)
			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					hubs[i], errs[i] = runner.openHub()
				}()
			}
			wg.Wait()

			for i := range callers {
				if errs[i] != nil {
					t.Fatalf("caller %d: expected no error, got %v", i, errs[i])
				}
				if hubs[i] != hubs[0] {
					t.Errorf("caller %d: expected the shared hub", i)
				}
			}
		})

		t.Run("reopens after Close", func(t *testing.T) {
			runner, _ := newTestRunner(t, seededBackend(), tu.NewFakeDialer())
			first, err := runner.openHub()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if err := runner.Close(); err != nil {
				t.Fatalf("expected no error closing, got %v", err)
			}
			second, err := runner.openHub()
			if err != nil {
				t.Fatalf("expected no error reopening, got %v", err)
			}
			if second == first {
				t.Error("expected a fresh hub after Close")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make(map[string]bool)
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if names[cmd.Name] {
				t.Errorf("command %q registered twice", cmd.Name)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "notifications", "chats", "friends", "sync", "watch", "api", "tui"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("identity from flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, output := newTestRunner(t, tu.NewFakeBackend("u1"), nil)

		if err := runApp(ctx, runner, "setup", "identity", "--config", path, "--user", "u7", "--token", "secret"); err != nil {
			t.Fatalf("setup identity failed: %v", err)
		}

		config, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if config.Identity.UserID != "u7" || config.Identity.Token != "secret" {
			t.Errorf("expected identity to be saved, got %+v", config.Identity)
		}
		if runner.config.Identity.UserID != "u7" {
			t.Error("expected runner config to be updated")
		}
		if !strings.Contains(output.String(), "Signed in as u7") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
	})

	t.Run("identity from curl", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, _ := newTestRunner(t, tu.NewFakeBackend("u1"), nil)
		curl := "curl 'https://api.example.com/api/users/u9/notifications' -H 'Authorization: Bearer abc'"

		if err := runApp(ctx, runner, "setup", "identity", "--config", path, "--curl", curl); err != nil {
			t.Fatalf("setup identity failed: %v", err)
		}

		config, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if config.Identity.UserID != "u9" || config.Identity.Token != "abc" {
			t.Errorf("unexpected identity %+v", config.Identity)
		}
		if config.Server.BaseURL != "https://api.example.com" || config.Server.WSURL != "wss://api.example.com" {
			t.Errorf("unexpected server %+v", config.Server)
		}
	})

	t.Run("identity needs a source", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, _ := newTestRunner(t, tu.NewFakeBackend("u1"), nil)

		err := runApp(ctx, runner, "setup", "identity", "--config", path, "--user", "u7")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("curl and curl-file conflict", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner, _ := newTestRunner(t, tu.NewFakeBackend("u1"), nil)

		err := runApp(ctx, runner, "setup", "identity", "--config", path, "--curl", "curl", "--curl-file", "x.sh")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("config in the working directory", func(t *testing.T) {
		wd := tu.MustGetwd(t)
		tu.MustChdir(t, t.TempDir())
		t.Cleanup(func() { tu.MustChdir(t, wd) })
		runner, output := newTestRunner(t, tu.NewFakeBackend("u1"), nil)

		if err := runApp(ctx, runner, "setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, "config.toml")
		if _, err := shared.LoadConfig("config.toml"); err != nil {
			t.Errorf("expected the template to load, got %v", err)
		}
		if !strings.Contains(output.String(), "Config written to config.toml") {
			t.Errorf("unexpected output %q", output.String())
		}

		if err := runApp(ctx, runner, "setup", "config"); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "data", "cache.db")
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		runner, output := newTestRunner(t, tu.NewFakeBackend("u1"), nil)

		if err := runApp(ctx, runner, "setup", "database", "--config", path); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertDirExists(t, filepath.Join(dir, "data"))
		tu.AssertFileExists(t, config.Database.Path)
		if !strings.Contains(output.String(), "✓ 0001") {
			t.Errorf("expected applied migrations to be listed, got %q", output.String())
		}
	})
}

func TestNotificationCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		runner, output := newTestRunner(t, seededBackend(), nil)

		if err := runApp(ctx, runner, "notifications", "list", "--format", "csv"); err != nil {
			t.Fatalf("notifications list failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(output.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d: %q", len(lines), output.String())
		}
		if !strings.HasPrefix(lines[1], "n2,") {
			t.Errorf("expected newest notification first, got %q", lines[1])
		}
	})

	t.Run("list rejects unknown formats", func(t *testing.T) {
		runner, _ := newTestRunner(t, seededBackend(), nil)

		err := runApp(ctx, runner, "notifications", "list", "--format", "yaml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("read", func(t *testing.T) {
		backend := seededBackend()
		runner, output := newTestRunner(t, backend, nil)

		if err := runApp(ctx, runner, "notifications", "read", "n1"); err != nil {
			t.Fatalf("notifications read failed: %v", err)
		}
		if n, _ := backend.Notification("n1"); n.Status != models.StatusRead {
			t.Errorf("expected n1 to be read on the server, got %s", n.Status)
		}
		if !strings.Contains(output.String(), "✓ mark_read n1") {
			t.Errorf("expected confirmation, got %q", output.String())
		}
		if snap := runner.hub.Read(); snap.UnreadNotifications != 0 {
			t.Errorf("expected no unread notifications in the mirror, got %d", snap.UnreadNotifications)
		}
	})

	t.Run("read needs an id", func(t *testing.T) {
		runner, _ := newTestRunner(t, seededBackend(), nil)

		err := runApp(ctx, runner, "notifications", "read")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("rejected mutation", func(t *testing.T) {
		backend := seededBackend()
		backend.Fail("DeleteNotification", &services.HTTPError{StatusCode: http.StatusForbidden, Message: "nope"})
		runner, _ := newTestRunner(t, backend, nil)

		err := runApp(ctx, runner, "notifications", "delete", "n1")
		if !errors.Is(err, shared.ErrMutationRejected) {
			t.Errorf("expected ErrMutationRejected, got %v", err)
		}
		if _, ok := runner.hub.Read().Notification("n1"); !ok {
			t.Error("expected n1 to be restored after rollback")
		}
	})

	t.Run("clear", func(t *testing.T) {
		backend := seededBackend()
		runner, _ := newTestRunner(t, backend, nil)

		if err := runApp(ctx, runner, "notifications", "clear"); err != nil {
			t.Fatalf("notifications clear failed: %v", err)
		}
		if _, ok := backend.Notification("n1"); ok {
			t.Error("expected notifications to be deleted on the server")
		}
	})
}

func TestChatCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("messages", func(t *testing.T) {
		runner, output := newTestRunner(t, seededBackend(), nil)

		if err := runApp(ctx, runner, "chats", "messages", "c1"); err != nil {
			t.Fatalf("chats messages failed: %v", err)
		}
		if !strings.Contains(output.String(), "u2: hey") {
			t.Errorf("expected the transcript, got %q", output.String())
		}
	})

	t.Run("messages of an unknown chat", func(t *testing.T) {
		runner, _ := newTestRunner(t, seededBackend(), nil)

		err := runApp(ctx, runner, "chats", "messages", "nope")
		if !errors.Is(err, shared.ErrChatNotFound) {
			t.Errorf("expected ErrChatNotFound, got %v", err)
		}
	})

	t.Run("send", func(t *testing.T) {
		backend := seededBackend()
		runner, output := newTestRunner(t, backend, nil)

		if err := runApp(ctx, runner, "chats", "send", "c1", "on my way"); err != nil {
			t.Fatalf("chats send failed: %v", err)
		}
		if !strings.Contains(output.String(), "Message id: ") {
			t.Errorf("expected the server id, got %q", output.String())
		}
		msgs := runner.hub.Read().ChatMessages("c1")
		last := msgs[len(msgs)-1]
		if last.Content != "on my way" || last.Pending() {
			t.Errorf("expected a confirmed message, got %+v", last)
		}
	})
}

func TestFriendCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("add", func(t *testing.T) {
		runner, output := newTestRunner(t, seededBackend(), nil)

		if err := runApp(ctx, runner, "friends", "add", "u5"); err != nil {
			t.Fatalf("friends add failed: %v", err)
		}
		if !strings.Contains(output.String(), "Request id: ") {
			t.Errorf("expected the request id, got %q", output.String())
		}
	})

	t.Run("respond", func(t *testing.T) {
		runner, output := newTestRunner(t, seededBackend(), nil)

		if err := runApp(ctx, runner, "friends", "respond", "--decline", "r1"); err != nil {
			t.Fatalf("friends respond failed: %v", err)
		}
		if !strings.Contains(output.String(), "Request r1 is now declined") {
			t.Errorf("expected the new status, got %q", output.String())
		}
	})

	t.Run("list", func(t *testing.T) {
		backend := seededBackend()
		backend.SetFriends(models.Friend{UserID: "u2", Name: "Sam", Online: true}, models.Friend{UserID: "u3"})
		runner, output := newTestRunner(t, backend, nil)

		if err := runApp(ctx, runner, "friends", "list"); err != nil {
			t.Fatalf("friends list failed: %v", err)
		}
		if !strings.Contains(output.String(), "Friends: 2") || !strings.Contains(output.String(), "● Sam") {
			t.Errorf("unexpected output %q", output.String())
		}
	})
}

func TestSyncCommands(t *testing.T) {
	ctx := context.Background()
	runner, output := newTestRunner(t, seededBackend(), nil)

	if err := runApp(ctx, runner, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	result := output.String()
	if !strings.Contains(result, "Sync Complete") {
		t.Errorf("expected summary, got %q", result)
	}
	if !strings.Contains(result, "Unread notifications: 1") || !strings.Contains(result, "Unread messages: 1") {
		t.Errorf("expected unread counts, got %q", result)
	}

	if err := runApp(ctx, runner, "sync", "status"); err != nil {
		t.Fatalf("sync status failed: %v", err)
	}
	for _, ch := range models.Channels() {
		if !strings.Contains(output.String(), string(ch)) {
			t.Errorf("expected %s in the journal, got %q", ch, output.String())
		}
	}

	if err := runApp(ctx, runner, "sync", "--channel", "playlists"); !errors.Is(err, shared.ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	dialer := tu.NewFakeDialer()
	runner, output := newTestRunner(t, seededBackend(), dialer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runApp(ctx, runner, "watch", "--channel", "notifications") }()

	conn := dialer.Next(t, time.Second)
	conn.Push(t, models.NewNotification{Notification: models.Notification{
		ID: "n9", UserID: "u1", Kind: models.KindFriendRequest, Status: models.StatusUnread, CreatedAt: time.Now(), Version: 100,
	}})

	tu.Eventually(t, time.Second, func() bool {
		return strings.Contains(output.String(), "Friend request") && strings.Contains(output.String(), "(n9)")
	}, "expected the pushed notification, got %q", output.String())
	if !strings.Contains(output.String(), "connecting → connected") {
		t.Errorf("expected the connection transition, got %q", output.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
	if keys := runner.hub.Handlers(models.ChannelNotifications); len(keys) != 0 {
		t.Errorf("expected handlers removed, got %v", keys)
	}
}

func TestAPICommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	newRunner := func() (*Runner, *bytes.Buffer) {
		output := &bytes.Buffer{}
		return NewRunner(RunnerOpts{
			API:    services.NewAPIService(srv.URL, nil),
			Output: output,
			Logger: shared.NewLogger(io.Discard),
		}), output
	}
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		runner, output := newRunner()
		if err := runApp(ctx, runner, "api", "get", "--json", "/health"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if output.String() != `{"status":"ok"}`+"\n" {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("get non-2xx", func(t *testing.T) {
		runner, _ := newRunner()
		err := runApp(ctx, runner, "api", "get", "/missing")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("get transport failure", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		runner := NewRunner(RunnerOpts{
			API:    services.NewAPIService("http://127.0.0.1:1", client),
			Output: &bytes.Buffer{},
			Logger: shared.NewLogger(io.Discard),
		})
		if err := runApp(ctx, runner, "api", "get", "/health"); err == nil {
			t.Error("expected the transport error to surface")
		}
	})

	t.Run("post invalid JSON", func(t *testing.T) {
		runner, _ := newRunner()
		err := runApp(ctx, runner, "api", "post", "--data", "{nope", "/health")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		ev   models.Event
		want string
	}{
		{models.NotificationMarkedRead{All: true}, "all notifications read"},
		{models.NotificationDeleted{ID: "n1"}, "notification deleted n1"},
		{models.UnreadCountUpdate{Count: 3}, "unread notifications: 3"},
		{models.MessageReceived{Message: models.Message{ChatID: "c1", SenderID: "u2", Content: "hi"}}, "[c1] u2: hi"},
		{models.PresenceChanged{UserID: "u2", Online: true}, "u2 is online"},
		{models.ConnectionStateChange{Previous: models.Connected, Current: models.Reconnecting}, "connected → reconnecting"},
		{models.Resynced{Stale: []string{"n1"}}, "resynced, 1 stale"},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.ev); got != tt.want {
			t.Errorf("describeEvent(%T): expected %q, got %q", tt.ev, tt.want, got)
		}
	}
}

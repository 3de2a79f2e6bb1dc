package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantToken   string
		wantUser    string
		wantBaseURL string
		wantErr     bool
	}{
		{
			name:        "bearer with single quotes",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://api.example.com/api/users/u-42/notifications?limit=20`,
			wantToken:   "token123",
			wantUser:    "u-42",
			wantBaseURL: "https://api.example.com",
		},
		{
			name:        "bearer with double quotes and lowercase header",
			curlCmd:     `curl "http://127.0.0.1:5000/api/chats/c1/messages" -H "authorization: bearer abc"`,
			wantToken:   "abc",
			wantBaseURL: "http://127.0.0.1:5000",
		},
		{
			name: "multiline curl with backslashes",
			curlCmd: `curl 'https://music.example.com/api/users/me-1/chats' \
  -H 'Accept: application/json' \
  -H 'Authorization: Bearer multi' \
  -b 'session=ignored'`,
			wantToken:   "multi",
			wantUser:    "me-1",
			wantBaseURL: "https://music.example.com",
		},
		{
			name:    "cookie only",
			curlCmd: `curl -H 'Cookie: session=abc123' https://api.example.com`,
			wantErr: true,
		},
		{
			name:    "basic auth is not a bearer token",
			curlCmd: `curl -H 'Authorization: Basic dXNlcjpwYXNz' https://api.example.com`,
			wantErr: true,
		},
		{
			name:    "empty",
			curlCmd: ``,
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCurlCommand([]byte(tc.curlCmd))
			if tc.wantErr {
				if !errors.Is(err, ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.Token != tc.wantToken {
				t.Errorf("expected token %q, got %q", tc.wantToken, got.Token)
			}
			if got.UserID != tc.wantUser {
				t.Errorf("expected user %q, got %q", tc.wantUser, got.UserID)
			}
			if got.BaseURL != tc.wantBaseURL {
				t.Errorf("expected base URL %q, got %q", tc.wantBaseURL, got.BaseURL)
			}
			if _, ok := got.Headers["Cookie"]; ok {
				t.Error("cookie header should be excluded")
			}
		})
	}
}

func TestCurlIdentity(t *testing.T) {
	t.Run("WSURL", func(t *testing.T) {
		tc := map[string]string{
			"https://api.example.com": "wss://api.example.com",
			"http://127.0.0.1:5000":   "ws://127.0.0.1:5000",
			"":                        "",
		}
		for base, want := range tc {
			id := &CurlIdentity{BaseURL: base}
			if got := id.WSURL(); got != want {
				t.Errorf("WSURL(%q): expected %q, got %q", base, want, got)
			}
		}
	})

	t.Run("Apply keeps unknown fields", func(t *testing.T) {
		config := DefaultConfig()
		config.Identity.UserID = "existing"

		(&CurlIdentity{Token: "t"}).Apply(config)

		if config.Identity.Token != "t" {
			t.Errorf("expected token t, got %s", config.Identity.Token)
		}
		if config.Identity.UserID != "existing" {
			t.Errorf("expected user id to be kept, got %s", config.Identity.UserID)
		}
		if config.Server.BaseURL != DefaultConfig().Server.BaseURL {
			t.Errorf("expected base URL to be kept, got %s", config.Server.BaseURL)
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.sh")
	cmd := "curl 'https://api.example.com/api/users/u1/friends' -H 'Authorization: Bearer filetoken'\n"
	if err := os.WriteFile(path, []byte(cmd), 0644); err != nil {
		t.Fatalf("failed to write curl file: %v", err)
	}

	got, err := ParseCurlFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token != "filetoken" || got.UserID != "u1" {
		t.Errorf("unexpected identity %+v", got)
	}

	if _, err := ParseCurlFile(filepath.Join(t.TempDir(), "missing.sh")); err == nil {
		t.Error("expected error for missing file")
	}
}

// Utilities for lifting an identity out of a cURL command copied from the browser's network tab.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlURLRegex    = regexp.MustCompile(`https?://[^\s'"]+`)
	curlUserRegex   = regexp.MustCompile(`/api/users/([^/?\s]+)`)
)

// CurlIdentity is what a copied request reveals about the signed-in user.
type CurlIdentity struct {
	Headers map[string]string
	Token   string
	UserID  string
	BaseURL string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the identity.
func ParseCurlFile(filepath string) (*CurlIdentity, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers, the bearer token, the API origin and the user id.
func ParseCurlCommand(data []byte) (*CurlIdentity, error) {
	cmd := string(data)
	cmd = strings.ReplaceAll(cmd, "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	id := &CurlIdentity{Headers: make(map[string]string)}
	for _, match := range curlHeaderRegex.FindAllStringSubmatch(cmd, -1) {
		line := match[1]
		if line == "" {
			line = match[2]
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			continue
		}
		id.Headers[key] = value

		if strings.EqualFold(key, "authorization") {
			if scheme, token, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, "bearer") {
				id.Token = strings.TrimSpace(token)
			}
		}
	}

	if raw := curlURLRegex.FindString(cmd); raw != "" {
		if u, err := url.Parse(raw); err == nil {
			id.BaseURL = u.Scheme + "://" + u.Host
			if m := curlUserRegex.FindStringSubmatch(u.Path); m != nil {
				id.UserID = m[1]
			}
		}
	}

	if id.Token == "" {
		return nil, fmt.Errorf("%w: no bearer token found in curl command", ErrMissingCredentials)
	}
	return id, nil
}

// WSURL derives the push endpoint origin from the REST origin.
func (c *CurlIdentity) WSURL() string {
	switch {
	case strings.HasPrefix(c.BaseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://")
	case strings.HasPrefix(c.BaseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.BaseURL, "http://")
	default:
		return ""
	}
}

// Apply copies the discovered identity into config, leaving fields it could not find untouched.
func (c *CurlIdentity) Apply(config *Config) {
	config.Identity.Token = c.Token
	if c.UserID != "" {
		config.Identity.UserID = c.UserID
	}
	if c.BaseURL != "" {
		config.Server.BaseURL = c.BaseURL
		config.Server.WSURL = c.WSURL()
	}
}

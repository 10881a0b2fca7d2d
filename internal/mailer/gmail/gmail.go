// Package gmail sends notification emails through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
)

// Config selects the credentials used to reach Gmail. A service account
// needs domain-wide delegation to send as Sender; otherwise an OAuth client
// plus the token saved by cmd/oauth-init is used.
type Config struct {
	Sender             string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenFile     string
}

type Client struct {
	svc    *gmailapi.Service
	sender string
}

// New builds a Gmail client from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("missing GMAIL_SENDER")
	}

	// Token fetches and API calls share the pooled transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())

	ts, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gmailapi.NewService(ctx, goption.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	slog.InfoContext(ctx, "Gmail service created", "sender", cfg.Sender)
	return &Client{svc: svc, sender: cfg.Sender}, nil
}

func tokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	saJSON, err := readInlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(saJSON) > 0 {
		jwtCfg, err := google.JWTConfigFromJSON(saJSON, gmailapi.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		jwtCfg.Subject = cfg.Sender
		slog.InfoContext(ctx, "Using service account credentials", "scope", gmailapi.GmailSendScope)
		return jwtCfg.TokenSource(ctx), nil
	}

	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) == 0 || cfg.OAuthTokenFile == "" {
		return nil, errors.New("missing gmail credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_JSON/FILE with GOOGLE_OAUTH_TOKEN_FILE)")
	}
	oauthCfg, err := google.ConfigFromJSON(clientJSON, gmailapi.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	raw, err := os.ReadFile(cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	slog.InfoContext(ctx, "Using OAuth token credentials", "token_file", cfg.OAuthTokenFile)
	return oauthCfg.TokenSource(ctx, &tok), nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// Send delivers one plain-text email.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	raw := BuildRawMessage(c.sender, to, subject, body)
	_, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", to, err)
	}
	slog.InfoContext(ctx, "Email sent", "component", "gmail", "to", to, "subject", subject)
	return nil
}

// BuildRawMessage renders an RFC 2822 message encoded the way the Gmail API
// expects in Message.Raw (base64url).
func BuildRawMessage(from, to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// newHTTPClientWithPooling returns an HTTP client tuned for Google APIs.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

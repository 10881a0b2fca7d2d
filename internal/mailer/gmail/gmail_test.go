package gmail

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRawMessage(t *testing.T) {
	raw := BuildRawMessage("bot@example.com", "user@example.com", "Budget Exceeded", "line one\nline two")

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	msg := string(decoded)

	assert.True(t, strings.HasPrefix(msg, "From: bot@example.com\r\nTo: user@example.com\r\n"))
	assert.Contains(t, msg, "Subject: Budget Exceeded\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\nline one\r\nline two")
}

func TestBuildRawMessageEncodesNonASCIISubject(t *testing.T) {
	raw := BuildRawMessage("a@example.com", "b@example.com", "Spesa €", "x")
	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "Subject: =?utf-8?q?")
}

func TestReadInlineOrFile(t *testing.T) {
	b, err := readInlineOrFile(" {\"a\":1} ", "ignored")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b))

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("file"), 0o600))
	b, err = readInlineOrFile("", path)
	require.NoError(t, err)
	assert.Equal(t, "file", string(b))

	b, err = readInlineOrFile("", "")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "GMAIL_SENDER")

	_, err = New(context.Background(), Config{Sender: "bot@example.com"})
	assert.ErrorContains(t, err, "missing gmail credentials")
}

package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/edgeprobe/edgedns/notify"
	"github.com/edgeprobe/edgedns/pipeline"
	"github.com/edgeprobe/edgedns/regiondef"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleReport() *pipeline.RunReport {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &pipeline.RunReport{
		RunID:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Outcomes: []pipeline.RegionOutcome{
			{
				Target:   regiondef.RegionTarget{Region: "us", RecordName: "us.example.com"},
				Outcome:  pipeline.Succeeded(2),
				Selected: []netip.Addr{netip.MustParseAddr("1.1.1.1"), netip.MustParseAddr("2.2.2.2")},
			},
			{
				Target:  regiondef.RegionTarget{Region: "eu", RecordName: "eu.example.com"},
				Outcome: pipeline.SkippedNoCandidates(),
			},
		},
		Log: []string{"starting run", "[us] created record content=1.1.1.1", "[eu] WARN no candidates available"},
	}
}

func TestRenderText(t *testing.T) {
	text := notify.RenderText(sampleReport())

	assert.Contains(t, text, "Run:      6ba7b810-9dad-11d1-80b4-00c04fd430c8\n")
	assert.Contains(t, text, "Started:  2024-03-01 10:00:00 UTC\n")
	assert.Contains(t, text, "Finished: 2024-03-01 10:01:35 UTC\n")
	assert.Contains(t, text, "Duration: 1m35s\n")
	assert.Contains(t, text, "Regions (1 failed):\n")
	assert.Contains(t, text, "us.example.com  Succeeded(2)")
	assert.Contains(t, text, "eu.example.com  SkippedNoCandidates")
	assert.True(t, strings.HasSuffix(text,
		"Log:\nstarting run\n[us] created record content=1.1.1.1\n[eu] WARN no candidates available\n"))
}

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &notify.WriterNotifier{Out: &buf}

	require.NoError(t, n.Notify(context.Background(), "hello\n"))
	assert.Equal(t, "hello\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", notify.Truncate("short", 10))

	long := strings.Repeat("é", 5000)
	out := notify.Truncate(long, notify.TelegramMaxMessageLen)
	assert.Equal(t, notify.TelegramMaxMessageLen, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "(truncated)"))
}

func TestTruncateCountsUTF16Units(t *testing.T) {
	// each emoji is a surrogate pair, two units against the limit
	long := strings.Repeat("😀", 3000)
	out := notify.Truncate(long, notify.TelegramMaxMessageLen)

	units := len(utf16.Encode([]rune(out)))
	assert.LessOrEqual(t, units, notify.TelegramMaxMessageLen)
	assert.Greater(t, units, notify.TelegramMaxMessageLen-2)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "(truncated)"))

	fits := strings.Repeat("😀", notify.TelegramMaxMessageLen/2)
	assert.Equal(t, fits, notify.Truncate(fits, notify.TelegramMaxMessageLen))

	assert.Equal(t, "a", notify.Truncate("a😀", 2))
}

func TestTelegramNotifier(t *testing.T) {
	var received map[string]string
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	n, err := notify.NewTelegramNotifier(&notify.TelegramNotifierOptions{
		Logger:   zaptest.NewLogger(t),
		Endpoint: srv.URL,
		BotToken: "123:abc",
		ChatID:   "42",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), strings.Repeat("x", 5000))
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", received["chat_id"])
	assert.Len(t, received["text"], notify.TelegramMaxMessageLen)
}

func TestTelegramNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n, err := notify.NewTelegramNotifier(&notify.TelegramNotifierOptions{
		Endpoint: srv.URL,
		BotToken: "123:abc",
		ChatID:   "42",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifierHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	n, err := notify.NewTelegramNotifier(&notify.TelegramNotifierOptions{
		Endpoint: srv.URL,
		BotToken: "123:secret",
		ChatID:   "42",
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestTelegramNotifierRequiresCredentials(t *testing.T) {
	_, err := notify.NewTelegramNotifier(&notify.TelegramNotifierOptions{BotToken: "x"})
	require.Error(t, err)
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultTelegramEndpoint = "https://api.telegram.org"

	// TelegramMaxMessageLen is the longest text sendMessage accepts.
	TelegramMaxMessageLen = 4096
)

const truncatedSuffix = "\n... (truncated)"

type TelegramNotifier struct {
	logger     *zap.Logger
	httpClient *http.Client
	endpoint   string
	botToken   string
	chatID     string
}

var _ Notifier = (*TelegramNotifier)(nil)

type TelegramNotifierOptions struct {
	Logger     *zap.Logger
	HttpClient *http.Client
	Endpoint   string
	BotToken   string
	ChatID     string
}

func NewTelegramNotifier(opts *TelegramNotifierOptions) (*TelegramNotifier, error) {
	if opts.BotToken == "" || opts.ChatID == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultTelegramEndpoint
	}

	return &TelegramNotifier{
		logger:     logger,
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		botToken:   opts.BotToken,
		chatID:     opts.ChatID,
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Truncate shortens text to at most max UTF-16 code units, the unit
// Telegram measures message length in, marking the cut.  Surrogate pairs are
// never split.
func Truncate(text string, max int) string {
	if utf16Len(text) <= max {
		return text
	}

	suffixLen := utf16Len(truncatedSuffix)
	if max <= suffixLen {
		return utf16Prefix(text, max)
	}
	return utf16Prefix(text, max-suffixLen) + truncatedSuffix
}

func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// utf16Prefix returns the longest prefix of text that fits in max units.
func utf16Prefix(text string, max int) string {
	n := 0
	for idx, r := range text {
		n += len(utf16.Encode([]rune{r}))
		if n > max {
			return text[:idx]
		}
	}
	return text
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID: n.chatID,
		Text:   Truncate(text, TelegramMaxMessageLen),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	sendURL := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	n.logger.Debug("sending telegram message", zap.Int("length", len(body)))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		// url.Error would print the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return errors.Wrap(err, "failed to send telegram message")
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read telegram response")
	}

	var parsed sendMessageResponse
	err = json.Unmarshal(respBytes, &parsed)
	if err != nil {
		return fmt.Errorf("telegram returned invalid response (status %d)", resp.StatusCode)
	}

	if !parsed.OK {
		return fmt.Errorf("telegram rejected message: %d %s", parsed.ErrorCode, parsed.Description)
	}

	return nil
}

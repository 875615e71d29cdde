package candidatesrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrSourceUnavailable is returned when the source could not be reached
// within the transport's retry budget.
var ErrSourceUnavailable = errors.New("candidate source unavailable")

// SourceError is returned when the source answered but the answer was not a
// usable candidate list.
type SourceError struct {
	StatusCode int
	Status     string
	Message    string
}

var _ error = (*SourceError)(nil)

func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("candidate source error (http %d, status %q): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("candidate source error (status %q): %s", e.Status, e.Message)
}

type Candidate struct {
	IP netip.Addr
}

type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
}

type ClientOptions struct {
	Logger     *zap.Logger
	HttpClient *http.Client
}

func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		logger:     logger,
		httpClient: httpClient,
	}
}

type listResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Proxies []proxyEntry `json:"proxies"`
}

type proxyEntry struct {
	IP string `json:"ip"`
}

// Fetch retrieves the candidate list at sourceURL.  An empty list is not an
// error; callers decide what an empty list means.
func (c *Client) Fetch(ctx context.Context, sourceURL string) ([]Candidate, error) {
	logger := logctx.From(ctx, c.logger).With(zap.String("url", sourceURL))
	logger.Info("requesting candidate list")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, "failed to read response: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SourceError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(bodyBytes), 256),
		}
	}

	var parsed listResponse
	err = json.Unmarshal(bodyBytes, &parsed)
	if err != nil {
		return nil, &SourceError{
			StatusCode: resp.StatusCode,
			Message:    "malformed response: " + err.Error(),
		}
	}

	if parsed.Status != "success" {
		return nil, &SourceError{
			StatusCode: resp.StatusCode,
			Status:     parsed.Status,
			Message:    parsed.Message,
		}
	}

	var candidates []Candidate
	for _, proxy := range parsed.Proxies {
		ip, err := netip.ParseAddr(strings.TrimSpace(proxy.IP))
		if err != nil {
			logger.Warn("ignoring invalid candidate address",
				zap.String("ip", proxy.IP),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, Candidate{IP: ip})
	}

	candidates = lo.UniqBy(candidates, func(c Candidate) netip.Addr {
		return c.IP
	})

	logger.Info("received candidate list", zap.Int("count", len(candidates)))

	return candidates, nil
}

// Addrs returns the addresses of the candidates in order.
func Addrs(candidates []Candidate) []netip.Addr {
	return lo.Map(candidates, func(c Candidate, _ int) netip.Addr {
		return c.IP
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

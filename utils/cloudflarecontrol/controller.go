package cloudflarecontrol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Controller struct {
	logger     *zap.Logger
	httpClient *http.Client
	endpoint   string
	apiToken   string
}

type ControllerOptions struct {
	Logger     *zap.Logger
	HttpClient *http.Client
	Endpoint   string
	APIToken   string
}

func NewController(opts *ControllerOptions) (*Controller, error) {
	if opts == nil {
		opts = &ControllerOptions{}
	}

	if opts.APIToken == "" {
		return nil, errors.New("cloudflare api token is required")
	}
	if opts.Endpoint == "" {
		return nil, errors.New("cloudflare endpoint is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Controller{
		logger:     logger,
		httpClient: httpClient,
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiToken:   opts.APIToken,
	}, nil
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is returned when the API answered with success=false or a
// non-2xx status.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
	FullText   string
}

var _ error = (*APIError)(nil)

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("cloudflare api error (status: %d): %s", e.StatusCode, e.FullText)
	}

	msgs := make([]string, len(e.Errors))
	for i, detail := range e.Errors {
		msgs[i] = fmt.Sprintf("%d: %s", detail.Code, detail.Message)
	}
	return fmt.Sprintf("cloudflare api error (status: %d): %s", e.StatusCode, strings.Join(msgs, "; "))
}

// TransportError is returned when no usable response was received.
type TransportError struct {
	Cause error
}

var _ error = (*TransportError)(nil)

func (e *TransportError) Error() string {
	return fmt.Sprintf("cloudflare transport error: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

type ResultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type envelope struct {
	Success    bool            `json:"success"`
	Errors     []ErrorDetail   `json:"errors"`
	Result     json.RawMessage `json:"result"`
	ResultInfo *ResultInfo     `json:"result_info"`
}

func (c *Controller) doReq(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	out interface{},
) (*ResultInfo, error) {
	var bodyRdr io.Reader
	if body != nil {
		encodedBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		bodyRdr = bytes.NewReader(encodedBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bodyRdr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	if bodyRdr != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	req.Header.Add("Authorization", "Bearer "+c.apiToken)

	c.logger.Debug("sending cloudflare request",
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Cause: errors.Wrap(err, "failed to read response")}
	}

	var parsed envelope
	parseErr := json.Unmarshal(respBytes, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parseErr != nil || !parsed.Success {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Errors:     parsed.Errors,
			FullText:   string(respBytes),
		}
	}

	if out != nil && len(parsed.Result) > 0 {
		err = json.Unmarshal(parsed.Result, out)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode response result")
		}
	}

	return parsed.ResultInfo, nil
}

type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type ListDNSRecordsRequest struct {
	Name    string `url:"name,omitempty"`
	Type    string `url:"type,omitempty"`
	Page    int    `url:"page,omitempty"`
	PerPage int    `url:"per_page,omitempty"`
}

type ListDNSRecordsResponse struct {
	Records    []DNSRecord
	ResultInfo ResultInfo
}

func (c *Controller) ListDNSRecords(
	ctx context.Context,
	zoneID string,
	req *ListDNSRecordsRequest,
) (*ListDNSRecordsResponse, error) {
	var records []DNSRecord

	form, _ := query.Values(req)
	path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, form.Encode())
	resultInfo, err := c.doReq(ctx, http.MethodGet, path, nil, &records)
	if err != nil {
		return nil, err
	}

	resp := &ListDNSRecordsResponse{
		Records: records,
	}
	if resultInfo != nil {
		resp.ResultInfo = *resultInfo
	}

	return resp, nil
}

// ListAllDNSRecords walks every page of the listing.
func (c *Controller) ListAllDNSRecords(
	ctx context.Context,
	zoneID string,
	req *ListDNSRecordsRequest,
) ([]DNSRecord, error) {
	pageReq := *req
	if pageReq.PerPage == 0 {
		pageReq.PerPage = 100
	}

	var allRecords []DNSRecord
	for page := 1; ; page++ {
		pageReq.Page = page

		resp, err := c.ListDNSRecords(ctx, zoneID, &pageReq)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list page %d", page)
		}

		allRecords = append(allRecords, resp.Records...)

		if resp.ResultInfo.TotalPages <= page || len(resp.Records) == 0 {
			break
		}
	}

	return allRecords, nil
}

type CreateDNSRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func (c *Controller) CreateDNSRecord(
	ctx context.Context,
	zoneID string,
	req *CreateDNSRecordRequest,
) (*DNSRecord, error) {
	resp := &DNSRecord{}

	path := fmt.Sprintf("/zones/%s/dns_records", zoneID)
	_, err := c.doReq(ctx, http.MethodPost, path, req, resp)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Controller) DeleteDNSRecord(
	ctx context.Context,
	zoneID string,
	recordID string,
) error {
	path := fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID)
	_, err := c.doReq(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}

	return nil
}

type VerifyTokenResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *Controller) VerifyToken(ctx context.Context) (*VerifyTokenResponse, error) {
	resp := &VerifyTokenResponse{}

	_, err := c.doReq(ctx, http.MethodGet, "/user/tokens/verify", nil, resp)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

package cloudflarecontrol_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/edgeprobe/edgedns/utils/cloudflarecontrol"
	"github.com/edgeprobe/edgedns/utils/cloudflarecontrol/cftest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newController(t *testing.T, srv *cftest.Server, token string) *cloudflarecontrol.Controller {
	ctrl, err := cloudflarecontrol.NewController(&cloudflarecontrol.ControllerOptions{
		Logger:   zaptest.NewLogger(t),
		Endpoint: srv.URL,
		APIToken: token,
	})
	require.NoError(t, err)
	return ctrl
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	srv := cftest.NewServer("token", "zone")
	defer srv.Close()

	ctrl := newController(t, srv, "token")

	created, err := ctrl.CreateDNSRecord(ctx, "zone", &cloudflarecontrol.CreateDNSRecordRequest{
		Type:    "A",
		Name:    "us.example.com",
		Content: "1.1.1.1",
		TTL:     60,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	srv.Seed(cloudflarecontrol.DNSRecord{Type: "A", Name: "eu.example.com", Content: "2.2.2.2"})

	records, err := ctrl.ListAllDNSRecords(ctx, "zone", &cloudflarecontrol.ListDNSRecordsRequest{
		Name: "us.example.com",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.1.1.1", records[0].Content)
	assert.Equal(t, 60, records[0].TTL)

	err = ctrl.DeleteDNSRecord(ctx, "zone", created.ID)
	require.NoError(t, err)

	records, err = ctrl.ListAllDNSRecords(ctx, "zone", &cloudflarecontrol.ListDNSRecordsRequest{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "eu.example.com", records[0].Name)
}

func TestListAllPaginates(t *testing.T) {
	ctx := context.Background()
	srv := cftest.NewServer("token", "zone")
	defer srv.Close()

	for i := 0; i < 7; i++ {
		srv.Seed(cloudflarecontrol.DNSRecord{
			Type:    "A",
			Name:    "hk.example.com",
			Content: fmt.Sprintf("10.0.0.%d", i),
		})
	}

	records, err := newController(t, srv, "token").ListAllDNSRecords(ctx, "zone",
		&cloudflarecontrol.ListDNSRecordsRequest{PerPage: 3})
	require.NoError(t, err)
	require.Len(t, records, 7)
	require.Equal(t, "10.0.0.6", records[6].Content)
}

func TestAPIErrorVariant(t *testing.T) {
	ctx := context.Background()
	srv := cftest.NewServer("token", "zone")
	defer srv.Close()

	err := newController(t, srv, "wrong").DeleteDNSRecord(ctx, "zone", "rec-1")
	require.Error(t, err)

	var apiErr *cloudflarecontrol.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.StatusCode)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, 10000, apiErr.Errors[0].Code)
	assert.Contains(t, apiErr.Error(), "Authentication error")
}

func TestTransportErrorVariant(t *testing.T) {
	srv := cftest.NewServer("token", "zone")
	ctrl := newController(t, srv, "token")
	srv.Close()

	_, err := ctrl.ListDNSRecords(context.Background(), "zone", &cloudflarecontrol.ListDNSRecordsRequest{})
	require.Error(t, err)

	var transportErr *cloudflarecontrol.TransportError
	require.True(t, errors.As(err, &transportErr))
}

func TestNewControllerValidation(t *testing.T) {
	_, err := cloudflarecontrol.NewController(&cloudflarecontrol.ControllerOptions{
		Endpoint: "https://api.cloudflare.com/client/v4",
	})
	require.Error(t, err)
}

func TestVerifyToken(t *testing.T) {
	srv := cftest.NewServer("token", "zone")
	defer srv.Close()

	resp, err := newController(t, srv, "token").VerifyToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Status)

	_, err = newController(t, srv, "wrong").VerifyToken(context.Background())
	var apiErr *cloudflarecontrol.APIError
	require.True(t, errors.As(err, &apiErr))
}

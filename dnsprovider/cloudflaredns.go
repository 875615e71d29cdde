package dnsprovider

import (
	"context"

	"github.com/edgeprobe/edgedns/utils/cloudflarecontrol"
	"github.com/pkg/errors"
)

type CloudflareProvider struct {
	Controller *cloudflarecontrol.Controller
	ZoneID     string
}

var _ Provider = (*CloudflareProvider)(nil)

func NewCloudflareProvider(ctrl *cloudflarecontrol.Controller, zoneID string) (*CloudflareProvider, error) {
	if ctrl == nil {
		return nil, errors.New("cloudflare controller is required")
	}
	if zoneID == "" {
		return nil, errors.New("cloudflare zone id is required")
	}

	return &CloudflareProvider{
		Controller: ctrl,
		ZoneID:     zoneID,
	}, nil
}

func (p *CloudflareProvider) ListRecords(ctx context.Context, name string) ([]Record, error) {
	cfRecords, err := p.Controller.ListAllDNSRecords(ctx, p.ZoneID, &cloudflarecontrol.ListDNSRecordsRequest{
		Name: NormalizeName(name),
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(cfRecords))
	for _, cfRecord := range cfRecords {
		records = append(records, Record{
			ID:      cfRecord.ID,
			Name:    cfRecord.Name,
			Type:    cfRecord.Type,
			Content: cfRecord.Content,
			TTL:     cfRecord.TTL,
			Proxied: cfRecord.Proxied,
		})
	}

	return records, nil
}

func (p *CloudflareProvider) DeleteRecord(ctx context.Context, record Record) error {
	if record.ID == "" {
		return errors.New("cannot delete a record without an id")
	}

	return p.Controller.DeleteDNSRecord(ctx, p.ZoneID, record.ID)
}

func (p *CloudflareProvider) CreateRecord(ctx context.Context, record Record) (Record, error) {
	created, err := p.Controller.CreateDNSRecord(ctx, p.ZoneID, &cloudflarecontrol.CreateDNSRecordRequest{
		Type:    record.Type,
		Name:    record.Name,
		Content: record.Content,
		TTL:     record.TTL,
		Proxied: record.Proxied,
	})
	if err != nil {
		return Record{}, err
	}

	record.ID = created.ID
	return record, nil
}

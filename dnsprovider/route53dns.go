package dnsprovider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Route53API is the subset of the route53 client used by Route53Provider.
type Route53API interface {
	ListHostedZones(ctx context.Context, params *route53.ListHostedZonesInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	GetChange(ctx context.Context, params *route53.GetChangeInput, optFns ...func(*route53.Options)) (*route53.GetChangeOutput, error)
}

// Route53Provider exposes every value of a Route53 record set as an
// individual record, so a set holding three addresses reads back as three
// records.  Record ids have the form name|type|value.
type Route53Provider struct {
	logger       *zap.Logger
	client       Route53API
	hostedZoneID string
	waitForSync  bool

	zoneLock  sync.Mutex
	zoneCache map[string]string
}

var _ Provider = (*Route53Provider)(nil)

type Route53ProviderOptions struct {
	Logger       *zap.Logger
	Client       Route53API
	HostedZoneID string
	WaitForSync  bool
}

func NewRoute53Provider(opts *Route53ProviderOptions) (*Route53Provider, error) {
	if opts.Client == nil {
		return nil, errors.New("route53 client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Route53Provider{
		logger:       logger,
		client:       opts.Client,
		hostedZoneID: opts.HostedZoneID,
		waitForSync:  opts.WaitForSync,
		zoneCache:    make(map[string]string),
	}, nil
}

type Route53ClientOptions struct {
	Region          string
	FromEnvironment bool
	AccessKey       string
	SecretKey       string
}

// NewRoute53Client builds a route53 client either from the default AWS
// credential chain or from static keys.
func NewRoute53Client(ctx context.Context, opts *Route53ClientOptions) (*route53.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}

	if !opts.FromEnvironment {
		if opts.AccessKey == "" || opts.SecretKey == "" {
			return nil, errors.New("cannot use route53 without credentials")
		}

		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return route53.NewFromConfig(cfg), nil
}

func encodeRoute53ID(name, recType, value string) string {
	return strings.Join([]string{name, recType, value}, "|")
}

func decodeRoute53ID(id string) (string, string, string, error) {
	parts := strings.SplitN(id, "|", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid route53 record id: %s", id)
	}
	return parts[0], parts[1], parts[2], nil
}

func (p *Route53Provider) getHostedZoneId(ctx context.Context, name string) (string, error) {
	if p.hostedZoneID != "" {
		return p.hostedZoneID, nil
	}

	name = NormalizeName(name)

	p.zoneLock.Lock()
	defer p.zoneLock.Unlock()

	if zoneID, ok := p.zoneCache[name]; ok {
		return zoneID, nil
	}

	var bestID, bestName string
	var marker *string
	for {
		zones, err := p.client.ListHostedZones(ctx, &route53.ListHostedZonesInput{
			Marker: marker,
		})
		if err != nil {
			return "", errors.Wrap(err, "failed to list hosted zones")
		}

		for _, zone := range zones.HostedZones {
			zoneName := NormalizeName(aws.ToString(zone.Name))
			if name != zoneName && !strings.HasSuffix(name, "."+zoneName) {
				continue
			}
			if len(zoneName) > len(bestName) {
				bestName = zoneName
				bestID = aws.ToString(zone.Id)
			}
		}

		if !zones.IsTruncated || zones.NextMarker == nil {
			break
		}
		marker = zones.NextMarker
	}

	if bestID == "" {
		return "", fmt.Errorf("hosted zone not found for name: %s", name)
	}

	p.zoneCache[name] = bestID
	return bestID, nil
}

// listSets returns every record set named name, of any type.
func (p *Route53Provider) listSets(ctx context.Context, zoneID, name string) ([]types.ResourceRecordSet, error) {
	name = NormalizeName(name)

	var sets []types.ResourceRecordSet
	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
	}

	for {
		resp, err := p.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list resource record sets")
		}

		passedName := false
		for _, set := range resp.ResourceRecordSets {
			if NormalizeName(aws.ToString(set.Name)) != name {
				passedName = true
				break
			}
			sets = append(sets, set)
		}

		if passedName || !resp.IsTruncated {
			break
		}

		input.StartRecordName = resp.NextRecordName
		input.StartRecordType = resp.NextRecordType
		input.StartRecordIdentifier = resp.NextRecordIdentifier
	}

	return sets, nil
}

func (p *Route53Provider) findSet(ctx context.Context, zoneID, name, recType string) (*types.ResourceRecordSet, error) {
	sets, err := p.listSets(ctx, zoneID, name)
	if err != nil {
		return nil, err
	}

	for _, set := range sets {
		if string(set.Type) == recType {
			set := set
			return &set, nil
		}
	}

	return nil, nil
}

func setValues(set *types.ResourceRecordSet) []string {
	return lo.Map(set.ResourceRecords, func(rr types.ResourceRecord, _ int) string {
		return aws.ToString(rr.Value)
	})
}

func (p *Route53Provider) ListRecords(ctx context.Context, name string) ([]Record, error) {
	zoneID, err := p.getHostedZoneId(ctx, name)
	if err != nil {
		return nil, err
	}

	sets, err := p.listSets(ctx, zoneID, name)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, set := range sets {
		setName := NormalizeName(aws.ToString(set.Name))
		recType := string(set.Type)
		ttl := int(aws.ToInt64(set.TTL))

		if set.AliasTarget != nil {
			value := NormalizeName(aws.ToString(set.AliasTarget.DNSName))
			records = append(records, Record{
				ID:      encodeRoute53ID(setName, recType, value),
				Name:    setName,
				Type:    recType,
				Content: value,
				TTL:     ttl,
			})
			continue
		}

		for _, value := range setValues(&set) {
			records = append(records, Record{
				ID:      encodeRoute53ID(setName, recType, value),
				Name:    setName,
				Type:    recType,
				Content: value,
				TTL:     ttl,
			})
		}
	}

	return records, nil
}

func (p *Route53Provider) DeleteRecord(ctx context.Context, record Record) error {
	name, recType, value, err := decodeRoute53ID(record.ID)
	if err != nil {
		return err
	}

	zoneID, err := p.getHostedZoneId(ctx, name)
	if err != nil {
		return err
	}

	set, err := p.findSet(ctx, zoneID, name, recType)
	if err != nil {
		return err
	}
	if set == nil {
		return fmt.Errorf("record set not found: %s %s", recType, name)
	}

	var change types.Change
	remaining := lo.Without(setValues(set), value)
	if set.AliasTarget != nil || len(remaining) == 0 {
		change = types.Change{
			Action:            types.ChangeActionDelete,
			ResourceRecordSet: set,
		}
	} else {
		change = types.Change{
			Action: types.ChangeActionUpsert,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name:            set.Name,
				Type:            set.Type,
				TTL:             set.TTL,
				ResourceRecords: toResourceRecords(remaining),
			},
		}
	}

	return p.applyChange(ctx, zoneID, change)
}

func (p *Route53Provider) CreateRecord(ctx context.Context, record Record) (Record, error) {
	name := NormalizeName(record.Name)

	zoneID, err := p.getHostedZoneId(ctx, name)
	if err != nil {
		return Record{}, err
	}

	set, err := p.findSet(ctx, zoneID, name, record.Type)
	if err != nil {
		return Record{}, err
	}

	var change types.Change
	if set == nil {
		change = types.Change{
			Action: types.ChangeActionCreate,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name:            aws.String(name),
				Type:            types.RRType(record.Type),
				TTL:             aws.Int64(int64(record.TTL)),
				ResourceRecords: toResourceRecords([]string{record.Content}),
			},
		}
	} else {
		values := setValues(set)
		if !lo.Contains(values, record.Content) {
			values = append(values, record.Content)
		}

		change = types.Change{
			Action: types.ChangeActionUpsert,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name:            set.Name,
				Type:            set.Type,
				TTL:             aws.Int64(int64(record.TTL)),
				ResourceRecords: toResourceRecords(values),
			},
		}
	}

	err = p.applyChange(ctx, zoneID, change)
	if err != nil {
		return Record{}, err
	}

	record.Name = name
	record.ID = encodeRoute53ID(name, record.Type, record.Content)
	return record, nil
}

func toResourceRecords(values []string) []types.ResourceRecord {
	return lo.Map(values, func(value string, _ int) types.ResourceRecord {
		return types.ResourceRecord{Value: aws.String(value)}
	})
}

func (p *Route53Provider) applyChange(ctx context.Context, zoneID string, change types.Change) error {
	resp, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{change},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to change resource record sets")
	}

	if !p.waitForSync || resp.ChangeInfo == nil {
		return nil
	}

	return p.waitForChangeId(ctx, aws.ToString(resp.ChangeInfo.Id))
}

func (p *Route53Provider) waitForChangeId(ctx context.Context, changeId string) error {
	for {
		change, err := p.client.GetChange(ctx, &route53.GetChangeInput{
			Id: aws.String(changeId),
		})
		if err != nil {
			return errors.Wrap(err, "failed to get change status")
		}

		changeStatus := change.ChangeInfo.Status
		if changeStatus == types.ChangeStatusInsync {
			return nil
		}

		p.logger.Info("waiting for dns records to be in sync...",
			zap.String("current", string(changeStatus)))

		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context finished while waiting for change to sync")
		}
	}
}

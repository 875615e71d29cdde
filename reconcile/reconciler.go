package reconcile

import (
	"context"
	"net/netip"
	"time"

	"github.com/edgeprobe/edgedns/dnsprovider"
	"github.com/edgeprobe/edgedns/utils/logctx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Reconciler struct {
	logger         *zap.Logger
	provider       dnsprovider.Provider
	ttl            int
	proxied        bool
	settleInterval time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

type ReconcilerOptions struct {
	Logger         *zap.Logger
	Provider       dnsprovider.Provider
	TTL            int
	Proxied        bool
	SettleInterval time.Duration

	// Sleep replaces the settle wait, mainly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewReconciler(opts *ReconcilerOptions) (*Reconciler, error) {
	if opts.Provider == nil {
		return nil, errors.New("dns provider is required")
	}
	if opts.TTL < 0 {
		return nil, errors.New("record ttl cannot be negative")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Reconciler{
		logger:         logger,
		provider:       opts.Provider,
		ttl:            opts.TTL,
		proxied:        opts.Proxied,
		settleInterval: opts.SettleInterval,
		sleep:          sleep,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Result struct {
	Deleted   int
	Published []netip.Addr

	// Warnings holds failed deletes and failed secondary creates.
	Warnings []*ProviderWriteError
}

// Reconcile replaces every record named recordName with one A record per
// desired address.  All existing records get a delete attempt before the
// first create, and desired[0] is always created first.  The call succeeds
// iff the record for desired[0] was created.
func (r *Reconciler) Reconcile(ctx context.Context, recordName string, desired []netip.Addr) (*Result, error) {
	if len(desired) == 0 {
		return nil, errors.New("cannot reconcile without desired addresses")
	}

	recordName = dnsprovider.NormalizeName(recordName)
	logger := logctx.From(ctx, r.logger).With(zap.String("record", recordName))

	existing, err := r.provider.ListRecords(ctx, recordName)
	if err != nil {
		return nil, &ProviderListError{RecordName: recordName, Cause: err}
	}

	result := &Result{}

	for _, record := range existing {
		if dnsprovider.NormalizeName(record.Name) != recordName {
			continue
		}

		err := r.provider.DeleteRecord(ctx, record)
		if err != nil {
			writeErr := &ProviderWriteError{Op: WriteOpDelete, Record: record, Cause: err}
			logger.Warn("failed to delete record",
				zap.String("content", record.Content),
				zap.Error(err))
			result.Warnings = append(result.Warnings, writeErr)
			continue
		}

		logger.Info("deleted record",
			zap.String("type", record.Type),
			zap.String("content", record.Content))
		result.Deleted++
	}

	if result.Deleted > 0 && r.settleInterval > 0 {
		logger.Debug("waiting for deletions to settle",
			zap.Duration("interval", r.settleInterval))

		err := r.sleep(ctx, r.settleInterval)
		if err != nil {
			return result, errors.Wrap(err, "interrupted while waiting for deletions to settle")
		}
	}

	for idx, addr := range desired {
		record := dnsprovider.Record{
			Name:    recordName,
			Type:    dnsprovider.RecordTypeA,
			Content: addr.String(),
			TTL:     r.ttl,
			Proxied: r.proxied,
		}

		_, err := r.provider.CreateRecord(ctx, record)
		if err != nil {
			writeErr := &ProviderWriteError{Op: WriteOpCreate, Record: record, Cause: err}
			if idx == 0 {
				logger.Error("failed to create primary record",
					zap.String("content", record.Content),
					zap.Error(err))
				return result, writeErr
			}

			logger.Warn("failed to create record",
				zap.String("content", record.Content),
				zap.Error(err))
			result.Warnings = append(result.Warnings, writeErr)
			continue
		}

		logger.Info("created record",
			zap.String("content", record.Content),
			zap.Bool("primary", idx == 0))
		result.Published = append(result.Published, addr)
	}

	return result, nil
}

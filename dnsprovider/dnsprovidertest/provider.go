// Package dnsprovidertest provides an in-memory dnsprovider.Provider.
package dnsprovidertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/edgeprobe/edgedns/dnsprovider"
	"github.com/pkg/errors"
)

type Provider struct {
	lock    sync.Mutex
	nextID  int
	records []dnsprovider.Record
	calls   []string

	ListErr    error
	FailCreate map[string]bool
	FailDelete map[string]bool
}

var _ dnsprovider.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		FailCreate: map[string]bool{},
		FailDelete: map[string]bool{},
	}
}

// Seed stores a record and returns its assigned id.
func (p *Provider) Seed(name, recType, content string) string {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.nextID++
	id := fmt.Sprintf("rec-%d", p.nextID)
	p.records = append(p.records, dnsprovider.Record{
		ID:      id,
		Name:    dnsprovider.NormalizeName(name),
		Type:    recType,
		Content: content,
	})
	return id
}

// Contents returns the contents of the records named name, in storage order.
func (p *Provider) Contents(name string) []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	var out []string
	for _, record := range p.records {
		if record.Name == dnsprovider.NormalizeName(name) {
			out = append(out, record.Content)
		}
	}
	return out
}

// Calls returns the calls received, in order, formatted as "LIST <name>",
// "DELETE <id>" and "CREATE <content>".
func (p *Provider) Calls() []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]string(nil), p.calls...)
}

func (p *Provider) ListRecords(ctx context.Context, name string) ([]dnsprovider.Record, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	name = dnsprovider.NormalizeName(name)
	p.calls = append(p.calls, "LIST "+name)

	if p.ListErr != nil {
		return nil, p.ListErr
	}

	var out []dnsprovider.Record
	for _, record := range p.records {
		if record.Name == name {
			out = append(out, record)
		}
	}
	return out, nil
}

func (p *Provider) DeleteRecord(ctx context.Context, record dnsprovider.Record) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.calls = append(p.calls, "DELETE "+record.ID)

	if p.FailDelete[record.ID] {
		return errors.Errorf("delete of %s rejected", record.ID)
	}

	for idx, existing := range p.records {
		if existing.ID == record.ID {
			p.records = append(p.records[:idx], p.records[idx+1:]...)
			return nil
		}
	}

	return errors.Errorf("record %s does not exist", record.ID)
}

func (p *Provider) CreateRecord(ctx context.Context, record dnsprovider.Record) (dnsprovider.Record, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.calls = append(p.calls, "CREATE "+record.Content)

	if p.FailCreate[record.Content] {
		return dnsprovider.Record{}, errors.Errorf("create of %s rejected", record.Content)
	}

	p.nextID++
	record.ID = fmt.Sprintf("rec-%d", p.nextID)
	record.Name = dnsprovider.NormalizeName(record.Name)
	p.records = append(p.records, record)
	return record, nil
}

package dnsprovider

import (
	"context"
	"fmt"
	"strings"
)

const RecordTypeA = "A"

// Record is a single DNS record as seen by a provider.  ID is assigned by
// the provider and is only known for records read back from it.
type Record struct {
	ID      string
	Name    string
	Type    string
	Content string
	TTL     int
	Proxied bool
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %s", r.Type, r.Name, r.Content)
}

// Provider is the per-record view of a managed DNS zone.
type Provider interface {
	// ListRecords returns every record named name, of any type.
	ListRecords(ctx context.Context, name string) ([]Record, error)
	DeleteRecord(ctx context.Context, record Record) error
	CreateRecord(ctx context.Context, record Record) (Record, error)
}

// NormalizeName lowercases a record name and strips the trailing dot.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

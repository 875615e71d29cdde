package reconcile

import (
	"fmt"

	"github.com/edgeprobe/edgedns/dnsprovider"
)

// ProviderListError means the existing record set could not be read, so
// nothing was changed.
type ProviderListError struct {
	RecordName string
	Cause      error
}

func (e *ProviderListError) Error() string {
	return fmt.Sprintf("failed to list records for %s: %s", e.RecordName, e.Cause)
}

func (e *ProviderListError) Unwrap() error {
	return e.Cause
}

type WriteOp string

const (
	WriteOpDelete WriteOp = "delete"
	WriteOpCreate WriteOp = "create"
)

// ProviderWriteError is a single failed delete or create call.
type ProviderWriteError struct {
	Op     WriteOp
	Record dnsprovider.Record
	Cause  error
}

func (e *ProviderWriteError) Error() string {
	return fmt.Sprintf("failed to %s record %s: %s", e.Op, e.Record, e.Cause)
}

func (e *ProviderWriteError) Unwrap() error {
	return e.Cause
}

// file: internal/executor/errors.go
// version: 1.0.0
// guid: 2f6a8c0e-4b7d-4e1a-9c3b-6d8f0a2c4e6b

package executor

import (
	"fmt"

	"github.com/jdfalk/bookbot/internal/txstore"
)

// CopyVerificationError reports a cross-volume copy whose checksum did not
// match the source. The partial destination has been removed; the source is
// untouched.
type CopyVerificationError struct {
	Src string
	Dst string
}

func (e *CopyVerificationError) Error() string {
	return fmt.Sprintf("copy verification failed: %s -> %s (checksum mismatch, source kept)", e.Src, e.Dst)
}

// StoreWriteError reports a plan that was fully applied but could not be
// recorded in the transaction store. The filesystem changes are in place;
// only the history entry is missing.
type StoreWriteError struct {
	TxID string
	Err  error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("applied but unrecorded: failed to write transaction %s: %v", e.TxID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// InvalidStateError reports an undo attempted on a transaction that is not
// in the committed state.
type InvalidStateError struct {
	ID     string
	Status txstore.Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("transaction %s is %s; only committed transactions can be undone", e.ID, e.Status)
}

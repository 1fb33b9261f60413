// Package storesync reconciles a local workspace directory with its
// remote object-store mirror. Reconciliation is checksum-based because
// the local and remote trees may be mounted through layers that do not
// preserve reliable modification times.
package storesync

import (
	"context"
	"errors"
	"fmt"
)

// Syncer mirrors a directory tree to and from a remote namespace.
// Both operations are idempotent: syncing an unchanged tree is a no-op.
type Syncer interface {
	// Upload mirrors localPath to the remote namespace, deleting remote
	// objects that no longer exist locally.
	Upload(ctx context.Context, localPath, namespaceID string) error

	// Download mirrors the remote namespace to localPath, deleting local
	// files that no longer exist remotely. Downloading from a namespace
	// that has never been uploaded to succeeds as a no-op.
	Download(ctx context.Context, namespaceID, localPath string) error
}

// ErrNotFound indicates the remote namespace or object does not exist.
// It is never retried.
var ErrNotFound = errors.New("remote namespace not found")

// SyncError is returned when a sync operation exhausts its retries.
type SyncError struct {
	Op        string // "upload" or "download"
	Namespace string
	Attempts  int
	Err       error // last underlying cause
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("workspace %s for namespace %q failed after %d attempts: %v",
		e.Op, e.Namespace, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

package storesync

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/HyphaGroup/drawbridge/internal/logger"
	"github.com/HyphaGroup/drawbridge/internal/metrics"
)

const (
	// defaultAttempts bounds retries for transient failures.
	defaultAttempts = 3
	// defaultBackoff is the first retry delay; it doubles each attempt.
	defaultBackoff = time.Second
	// defaultOpTimeout caps a single sync subprocess run.
	defaultOpTimeout = 5 * time.Minute
)

// CommandRunner runs the sync utility. It exists so tests can substitute
// a fake without spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Config holds settings for the rclone-backed syncer.
type Config struct {
	// Remote is the configured rclone remote name, e.g. "s3".
	Remote string
	// Bucket is the bucket all workspace namespaces live under.
	Bucket string
	// Binary is the rclone binary path. Defaults to "rclone".
	Binary string
	// Attempts overrides the retry bound. Defaults to 3.
	Attempts int
	// Backoff overrides the initial retry delay. Defaults to 1s.
	Backoff time.Duration
	// OpTimeout overrides the per-operation ceiling. Defaults to 5m.
	OpTimeout time.Duration
}

// RcloneSyncer implements Syncer by shelling out to rclone with
// checksum comparison and mirror-delete semantics.
type RcloneSyncer struct {
	remote    string
	bucket    string
	binary    string
	attempts  int
	backoff   time.Duration
	opTimeout time.Duration
	runner    CommandRunner
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRcloneSyncer creates a syncer from config, applying defaults.
func NewRcloneSyncer(cfg Config) *RcloneSyncer {
	s := &RcloneSyncer{
		remote:    cfg.Remote,
		bucket:    cfg.Bucket,
		binary:    cfg.Binary,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
		opTimeout: cfg.OpTimeout,
		runner:    execRunner{},
		sleep:     sleepContext,
	}
	if s.binary == "" {
		s.binary = "rclone"
	}
	if s.attempts <= 0 {
		s.attempts = defaultAttempts
	}
	if s.backoff <= 0 {
		s.backoff = defaultBackoff
	}
	if s.opTimeout <= 0 {
		s.opTimeout = defaultOpTimeout
	}
	return s
}

// Upload mirrors localPath to the remote namespace.
func (s *RcloneSyncer) Upload(ctx context.Context, localPath, namespaceID string) error {
	start := time.Now()
	err := s.syncWithRetry(ctx, "upload", namespaceID, localPath, s.remotePath(namespaceID))
	if err != nil {
		metrics.RecordSyncOperation("upload", "failed", time.Since(start).Seconds())
		return err
	}
	metrics.RecordSyncOperation("upload", "success", time.Since(start).Seconds())
	return nil
}

// Download mirrors the remote namespace to localPath. A namespace that
// does not exist yet is treated as empty and the call succeeds without
// touching the local tree.
func (s *RcloneSyncer) Download(ctx context.Context, namespaceID, localPath string) error {
	start := time.Now()
	err := s.syncWithRetry(ctx, "download", namespaceID, s.remotePath(namespaceID), localPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("Namespace %s has no remote objects yet, skipping download", namespaceID)
			metrics.RecordSyncOperation("download", "empty", time.Since(start).Seconds())
			return nil
		}
		metrics.RecordSyncOperation("download", "failed", time.Since(start).Seconds())
		return err
	}
	metrics.RecordSyncOperation("download", "success", time.Since(start).Seconds())
	return nil
}

func (s *RcloneSyncer) remotePath(namespaceID string) string {
	return fmt.Sprintf("%s:%s/%s", s.remote, s.bucket, namespaceID)
}

// syncWithRetry runs one rclone sync with bounded retry and exponential
// backoff. Not-found errors short-circuit: retrying them cannot succeed.
func (s *RcloneSyncer) syncWithRetry(ctx context.Context, op, namespaceID, src, dst string) error {
	var lastErr error
	delay := s.backoff

	for attempt := 1; attempt <= s.attempts; attempt++ {
		lastErr = s.syncOnce(ctx, src, dst)
		if lastErr == nil {
			return nil
		}

		if isNotFoundOutput(lastErr.Error()) {
			return &SyncError{Op: op, Namespace: namespaceID, Attempts: attempt, Err: ErrNotFound}
		}

		if attempt < s.attempts {
			logger.Error("Workspace %s attempt %d/%d for %s failed, retrying in %v: %v",
				op, attempt, s.attempts, namespaceID, delay, lastErr)
			metrics.RecordSyncRetry(op)
			if err := s.sleep(ctx, delay); err != nil {
				return &SyncError{Op: op, Namespace: namespaceID, Attempts: attempt, Err: err}
			}
			delay *= 2
		}
	}

	return &SyncError{Op: op, Namespace: namespaceID, Attempts: s.attempts, Err: lastErr}
}

func (s *RcloneSyncer) syncOnce(ctx context.Context, src, dst string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	args := []string{"sync", src, dst, "--checksum"}
	output, err := s.runner.Run(opCtx, s.binary, args...)
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed != "" {
			return fmt.Errorf("%s sync %s -> %s: %w: %s", s.binary, src, dst, err, trimmed)
		}
		return fmt.Errorf("%s sync %s -> %s: %w", s.binary, src, dst, err)
	}
	return nil
}

// isNotFoundOutput reports whether an error message plainly says the
// source namespace or object does not exist.
func isNotFoundOutput(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{
		"directory not found",
		"object not found",
		"doesn't exist",
		"does not exist",
		"no such bucket",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

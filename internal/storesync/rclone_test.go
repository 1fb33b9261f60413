package storesync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeRunner returns scripted results and records invocations.
type fakeRunner struct {
	results []fakeResult
	calls   [][]string
}

type fakeResult struct {
	output string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return []byte(r.output), r.err
}

func newTestSyncer(runner *fakeRunner) (*RcloneSyncer, *[]time.Duration) {
	s := NewRcloneSyncer(Config{Remote: "s3", Bucket: "drawbridge-workspaces"})
	s.runner = runner

	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestUploadSuccess(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{}}}
	s, slept := newTestSyncer(runner)

	if err := s.Upload(context.Background(), "/tmp/ws", "ws-abc"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(runner.calls))
	}
	if len(*slept) != 0 {
		t.Errorf("expected no backoff sleeps, got %v", *slept)
	}

	call := strings.Join(runner.calls[0], " ")
	if !strings.Contains(call, "sync /tmp/ws s3:drawbridge-workspaces/ws-abc") {
		t.Errorf("unexpected command: %s", call)
	}
	if !strings.Contains(call, "--checksum") {
		t.Errorf("expected checksum comparison, got: %s", call)
	}
}

func TestRetryWithBackoffThenSuccess(t *testing.T) {
	transient := errors.New("exit status 1")
	runner := &fakeRunner{results: []fakeResult{
		{output: "connection reset by peer", err: transient},
		{output: "timeout", err: transient},
		{},
	}}
	s, slept := newTestSyncer(runner)

	if err := s.Upload(context.Background(), "/tmp/ws", "ws-abc"); err != nil {
		t.Fatalf("upload should succeed on third attempt: %v", err)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(runner.calls))
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep %d: got %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestRetriesExhausted(t *testing.T) {
	transient := errors.New("exit status 1")
	runner := &fakeRunner{results: []fakeResult{
		{output: "connection refused", err: transient},
	}}
	s, _ := newTestSyncer(runner)

	err := s.Upload(context.Background(), "/tmp/ws", "ws-abc")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(runner.calls))
	}

	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected SyncError, got %T", err)
	}
	if syncErr.Op != "upload" || syncErr.Namespace != "ws-abc" || syncErr.Attempts != 3 {
		t.Errorf("unexpected SyncError fields: %+v", syncErr)
	}
	msg := err.Error()
	for _, part := range []string{"upload", "ws-abc", "3"} {
		if !strings.Contains(msg, part) {
			t.Errorf("error message missing %q: %s", part, msg)
		}
	}
}

func TestUploadNotFoundNotRetried(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{output: "ERROR : directory not found", err: errors.New("exit status 3")},
	}}
	s, slept := newTestSyncer(runner)

	err := s.Upload(context.Background(), "/tmp/ws", "ws-abc")
	if err == nil {
		t.Fatal("upload against missing source must propagate the error")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("not-found must not be retried, got %d calls", len(runner.calls))
	}
	if len(*slept) != 0 {
		t.Errorf("not-found must not back off, slept %v", *slept)
	}
}

func TestDownloadFreshNamespaceIsNoOp(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{output: "ERROR : s3:drawbridge-workspaces/ws-new: directory not found", err: errors.New("exit status 3")},
	}}
	s, _ := newTestSyncer(runner)

	if err := s.Download(context.Background(), "ws-new", "/tmp/ws"); err != nil {
		t.Fatalf("download from never-uploaded namespace must succeed: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("expected a single attempt, got %d", len(runner.calls))
	}
}

func TestDownloadDirection(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{}}}
	s, _ := newTestSyncer(runner)

	if err := s.Download(context.Background(), "ws-abc", "/tmp/ws"); err != nil {
		t.Fatalf("download failed: %v", err)
	}
	call := strings.Join(runner.calls[0], " ")
	if !strings.Contains(call, "sync s3:drawbridge-workspaces/ws-abc /tmp/ws") {
		t.Errorf("download must mirror remote to local: %s", call)
	}
}

func TestSleepCancellation(t *testing.T) {
	transient := errors.New("exit status 1")
	runner := &fakeRunner{results: []fakeResult{
		{output: "throttled", err: transient},
	}}
	s := NewRcloneSyncer(Config{Remote: "s3", Bucket: "b"})
	s.runner = runner
	s.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	err := s.Upload(context.Background(), "/tmp/ws", "ws-abc")
	if err == nil {
		t.Fatal("expected error when backoff is cancelled")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(runner.calls) != 1 {
		t.Errorf("cancelled backoff must stop retrying, got %d calls", len(runner.calls))
	}
}

func TestIsNotFoundOutput(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"ERROR : directory not found", true},
		{"Failed to sync: object not found", true},
		{"bucket doesn't exist", true},
		{"connection reset by peer", false},
		{"exit status 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := isNotFoundOutput(fmt.Sprintf("rclone: %s", tt.msg)); got != tt.want {
				t.Errorf("isNotFoundOutput(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

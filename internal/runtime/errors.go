package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/HyphaGroup/drawbridge/internal/storesync"
)

// ConfigurationError indicates the runtime was constructed or invoked
// with unusable settings.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// UnsupportedAgentKindError is returned when a caller requests an agent
// kind the runtime cannot serve.
type UnsupportedAgentKindError struct {
	Kind AgentKind
}

func (e *UnsupportedAgentKindError) Error() string {
	return fmt.Sprintf("agent kind %q is not supported; only %q tasks can be dispatched", e.Kind, AgentKindCode)
}

// EngineExecutionError wraps a failure from the local engine.
type EngineExecutionError struct {
	Err error
}

func (e *EngineExecutionError) Error() string {
	return fmt.Sprintf("engine execution failed: %v", e.Err)
}

func (e *EngineExecutionError) Unwrap() error { return e.Err }

// RemoteErrorClass categorizes remote execution failures so callers can
// present an actionable message.
type RemoteErrorClass string

const (
	RemoteTimeout     RemoteErrorClass = "timeout"
	RemoteUnreachable RemoteErrorClass = "unreachable"
	RemoteAuth        RemoteErrorClass = "auth"
	RemoteNotFound    RemoteErrorClass = "not_found"
	RemoteServer      RemoteErrorClass = "server"
	RemoteSync        RemoteErrorClass = "sync"
	RemoteGeneric     RemoteErrorClass = "generic"
)

// RemoteError is a classified remote execution failure.
type RemoteError struct {
	Class   RemoteErrorClass
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// classifyRemoteError maps a transport or sync failure to a RemoteError
// with a message that tells the caller what to do next.
func classifyRemoteError(endpoint string, err error) *RemoteError {
	var syncErr *storesync.SyncError
	if errors.As(err, &syncErr) {
		return &RemoteError{
			Class:   RemoteSync,
			Message: "Workspace sync failed. Check the object store configuration and network connectivity",
			Err:     err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{
			Class:   RemoteTimeout,
			Message: "Remote execution timed out. Long tasks may need a higher timeout, or the service may be overloaded",
			Err:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RemoteError{
			Class:   RemoteTimeout,
			Message: "Remote execution timed out. Long tasks may need a higher timeout, or the service may be overloaded",
			Err:     err,
		}
	}

	if isConnectionRefused(err) {
		return &RemoteError{
			Class:   RemoteUnreachable,
			Message: fmt.Sprintf("Cannot reach the execution service at %s. Verify the endpoint and that the service is running", endpoint),
			Err:     err,
		}
	}

	return &RemoteError{
		Class:   RemoteGeneric,
		Message: "Remote execution failed. Check the service logs for details",
		Err:     err,
	}
}

// classifyStatus maps a non-2xx response to a RemoteError.
func classifyStatus(status int, body string) *RemoteError {
	body = strings.TrimSpace(body)

	switch {
	case status == 401 || status == 403:
		return &RemoteError{
			Class:   RemoteAuth,
			Message: "Authentication with the execution service failed. Check the API key",
		}
	case status == 404:
		return &RemoteError{
			Class:   RemoteNotFound,
			Message: "The execution service rejected the request as unknown. The session may have expired; retry without a session id",
		}
	case status >= 500:
		msg := "The execution service reported an internal error"
		if body != "" {
			msg = fmt.Sprintf("%s: %s", msg, body)
		}
		return &RemoteError{Class: RemoteServer, Message: msg}
	default:
		msg := fmt.Sprintf("The execution service returned status %d", status)
		if body != "" {
			msg = fmt.Sprintf("%s: %s", msg, body)
		}
		return &RemoteError{Class: RemoteGeneric, Message: msg}
	}
}

func isConnectionRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Engine thread ids and namespace ids are opaque tokens; constrain
	// them to characters safe for paths and command lines.
	sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// Namespace ids are slug-digest or UUID shaped.
	namespaceRegex = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidateSessionID checks that a session id is usable as an engine
// thread reference
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("session ID too long: %d characters", len(id))
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID format: %s", id)
	}
	return nil
}

// ValidateNamespaceID checks an object-store namespace id
func ValidateNamespaceID(id string) error {
	if id == "" {
		return fmt.Errorf("namespace ID cannot be empty")
	}
	if !namespaceRegex.MatchString(id) {
		return fmt.Errorf("invalid namespace ID format: %s", id)
	}
	return nil
}

// ValidateWorkspacePath rejects workspace paths that could escape or
// confuse downstream tooling. Relative paths are allowed; they are
// resolved against the process working directory.
func ValidateWorkspacePath(path string) error {
	if path == "" {
		return fmt.Errorf("workspace path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("workspace path contains NUL byte")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}
	return nil
}

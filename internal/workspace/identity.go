// Package workspace derives stable identifiers for local workspace
// directories. The identifier keys the remote storage namespace that
// mirrors the workspace, so it must be deterministic for a given
// absolute path and must not depend on the directory's contents.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// digestLength is the number of hex characters kept from the path hash.
const digestLength = 16

// Identity returns the storage namespace identifier for a workspace path.
// Relative paths are resolved against the current working directory. The
// result is "{slug}-{digest}" where slug is a filesystem-safe form of the
// final path component and digest is a truncated sha256 of the canonical
// absolute path.
func Identity(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	sum := sha256.Sum256([]byte(abs))
	digest := hex.EncodeToString(sum[:])[:digestLength]

	slug := Slug(filepath.Base(abs))
	if slug == "" {
		slug = "workspace"
	}

	return slug + "-" + digest, nil
}

// Slug converts a name into a lowercase identifier containing only
// [a-z0-9-]. Runs of other characters collapse to a single dash and
// leading/trailing dashes are trimmed.
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastDash := false
	for _, r := range strings.ToLower(name) {
		isSafe := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if isSafe {
			b.WriteRune(r)
			lastDash = r == '-'
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	return strings.Trim(b.String(), "-")
}

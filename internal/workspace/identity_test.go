package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIdentityDeterministic(t *testing.T) {
	a, err := Identity("/tmp/project-one")
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	b, err := Identity("/tmp/project-one")
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	if a != b {
		t.Errorf("identity not deterministic: %q vs %q", a, b)
	}
}

func TestIdentityDistinctPaths(t *testing.T) {
	seen := make(map[string]string)
	paths := []string{
		"/tmp/a", "/tmp/b", "/tmp/a/b", "/var/a", "/tmp/A",
		"/home/dev/proj", "/home/dev/proj2", "/home/dev2/proj",
	}
	for _, p := range paths {
		id, err := Identity(p)
		if err != nil {
			t.Fatalf("identity(%q) failed: %v", p, err)
		}
		if prev, ok := seen[id]; ok {
			t.Errorf("collision: %q and %q both map to %s", prev, p, id)
		}
		seen[id] = p
	}
}

func TestIdentityRelativeEqualsAbsolute(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}

	rel, err := Identity("some/dir")
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	abs, err := Identity(filepath.Join(cwd, "some", "dir"))
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	if rel != abs {
		t.Errorf("relative and absolute forms differ: %q vs %q", rel, abs)
	}
}

func TestIdentityFormat(t *testing.T) {
	id, err := Identity("/tmp/My Project!")
	if err != nil {
		t.Fatalf("identity failed: %v", err)
	}
	if !strings.HasPrefix(id, "my-project-") {
		t.Errorf("expected sanitized slug prefix, got %q", id)
	}
	parts := strings.Split(id, "-")
	digest := parts[len(parts)-1]
	if len(digest) != 16 {
		t.Errorf("expected 16 char digest suffix, got %q", digest)
	}
	for _, c := range digest {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			t.Errorf("digest contains non-hex char %q in %q", c, id)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"myproject", "myproject"},
		{"My Project", "my-project"},
		{"foo__bar", "foo-bar"},
		{"--weird--", "weird"},
		{"...", ""},
		{"CamelCase123", "camelcase123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

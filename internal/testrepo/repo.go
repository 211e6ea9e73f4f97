// Package testrepo creates throwaway git repositories for tests to run against.
package testrepo

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// A Repo is a temporary git repository with a configurable commit history.
type Repo struct {
	Root string
}

// New creates a temporary git repository with a single initial commit.
// The repository is removed again when the test finishes.
func New(tb testing.TB) *Repo {
	tb.Helper()

	root, err := os.MkdirTemp("", "revrun-test-repo-*")
	if err != nil {
		tb.Fatalf("Failed to create temp repo directory - %v", err)
	}
	tb.Cleanup(func() { os.RemoveAll(root) })

	repo := &Repo{Root: root}
	repo.Git(tb, "init", "--initial-branch=main")
	repo.Git(tb, "config", "user.name", "revrun test")
	repo.Git(tb, "config", "user.email", "test@example.com")
	repo.Git(tb, "config", "commit.gpgsign", "false")
	repo.Commit(tb, "README.md", "# test repository\n", "initial commit")

	return repo
}

// Git runs git inside the repository and fails the test if it errors.
func (r *Repo) Git(tb testing.TB, args ...string) string {
	tb.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Root
	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf("git %s failed - %v, output: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Commit writes the given file and commits it, returning the new commit's hash.
func (r *Repo) Commit(tb testing.TB, file, content, message string) string {
	tb.Helper()

	path := filepath.Join(r.Root, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("Failed to create directory for %s - %v", file, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("Failed to write %s - %v", file, err)
	}

	r.Git(tb, "add", file)
	r.Git(tb, "commit", "-m", message)
	return r.Head(tb)
}

// Head returns the hash of the repository's current HEAD commit.
func (r *Repo) Head(tb testing.TB) string {
	tb.Helper()
	return r.Git(tb, "rev-parse", "HEAD")
}

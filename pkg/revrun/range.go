package revrun

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrRefNotFound is returned when a range bound does not resolve to a commit.
var ErrRefNotFound = errors.New("reference does not resolve to a commit")

// resolveRef resolves a reference name to a full commit hash.
func resolveRef(repoPath, ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrRefNotFound, ref)
	}
	return strings.TrimSpace(string(out)), nil
}

// resolveRange returns the hashes of all commits reachable from endRef but not
// from startRef, i.e. the two-dot range startRef..endRef.
// The returned slice is ordered chronologically, starting from the oldest commit
// at index 0 and the commit endRef resolves to at the last index.
// An empty range is not an error and yields an empty slice.
func resolveRange(repoPath, startRef, endRef string) ([]string, error) {
	if _, err := resolveRef(repoPath, startRef); err != nil {
		return nil, err
	}
	if _, err := resolveRef(repoPath, endRef); err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "rev-list", "--reverse", fmt.Sprintf("%s..%s", startRef, endRef))
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to get rev-list of range %s..%s", startRef, endRef), err)
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

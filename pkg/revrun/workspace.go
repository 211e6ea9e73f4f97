package revrun

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dchest/uniuri"
	"github.com/otiai10/copy"
	"github.com/sirupsen/logrus"
)

// Mode selects how a commit's tree is materialized for command execution.
type Mode int

const (
	// ModeWorktree provisions an independent git worktree per commit.
	// Safe under concurrent execution.
	ModeWorktree Mode = iota
	// ModeCopy provisions a full copy of the repository per commit and checks
	// the commit out inside the copy. Safe under concurrent execution.
	ModeCopy
	// ModeInPlace checks each commit out directly inside the source repository's
	// working directory, discarding uncommitted changes. Strictly serial; the
	// original HEAD is restored after the whole run.
	ModeInPlace
)

func (m Mode) String() string {
	switch m {
	case ModeWorktree:
		return "worktree"
	case ModeCopy:
		return "copy"
	case ModeInPlace:
		return "in-place"
	}
	return fmt.Sprintf("unknown mode %d", int(m))
}

// ParseMode converts a mode name as accepted on the command line into a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "worktree":
		return ModeWorktree, nil
	case "copy":
		return ModeCopy, nil
	case "in-place", "inplace":
		return ModeInPlace, nil
	}
	return 0, fmt.Errorf("%q is not a valid mode, expected worktree, copy or in-place", name)
}

// isolated reports whether workspaces of this mode share no mutable repository
// state, making them safe to provision from concurrent workers.
func (m Mode) isolated() bool {
	return m != ModeInPlace
}

// A workspace is a directory containing one commit's tree, ready for the
// command to run inside.
type workspace struct {
	path   string // The directory the command runs in
	commit string // The full hash of the checked out commit
	mode   Mode
}

// A cleanupGuard owns the release of one workspace's filesystem and repository
// footprint. Release runs the release function exactly once, no matter how many
// exit paths reach it; release failures are logged and never escalated.
type cleanupGuard struct {
	once    sync.Once
	release func() error
	log     *logrus.Entry
}

func (g *cleanupGuard) Release() {
	g.once.Do(func() {
		if g.release == nil {
			return
		}
		if err := g.release(); err != nil {
			g.log.Warnf("Failed to clean up workspace - %v", err)
		}
	})
}

// WorkspacePrefix names all transient workspace directories so that leftovers
// from crashed runs can be found and pruned.
const WorkspacePrefix = "revrun-"

// workspaceDir returns a collision-free directory path for a commit's workspace.
func workspaceDir(commit string) string {
	short := commit
	if len(short) > 12 {
		short = short[:12]
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s%s-%s", WorkspacePrefix, short, uniuri.NewLen(8)))
}

// provisionWorktree materializes the commit as a detached git worktree at a
// unique location outside the source repository.
func provisionWorktree(repoPath, commit string, log *logrus.Entry) (*workspace, *cleanupGuard, error) {
	dir := workspaceDir(commit)

	cmd := exec.Command("git", "worktree", "add", "--detach", dir, commit)
	cmd.Dir = repoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("git worktree add of commit %s at %s failed, output: %s", commit, dir, out), err)
	}

	guard := &cleanupGuard{
		log: log,
		release: func() error {
			cmd := exec.Command("git", "worktree", "remove", "--force", dir)
			cmd.Dir = repoPath
			if out, err := cmd.CombinedOutput(); err != nil {
				// The worktree may be in a state git refuses to remove, e.g. after
				// the command deleted its own .git file. Fall back to removing the
				// directory and pruning the stale registration.
				rmErr := os.RemoveAll(dir)
				pruneCmd := exec.Command("git", "worktree", "prune")
				pruneCmd.Dir = repoPath
				pruneErr := pruneCmd.Run()
				if rmErr != nil || pruneErr != nil {
					return errors.Join(fmt.Errorf("git worktree remove of %s failed, output: %s", dir, out), err, rmErr, pruneErr)
				}
			}
			return nil
		},
	}

	return &workspace{path: dir, commit: commit, mode: ModeWorktree}, guard, nil
}

// provisionCopy materializes the commit by copying the whole repository to a
// unique location and checking the commit out inside the copy.
func provisionCopy(repoPath, commit string, workers int, log *logrus.Entry) (*workspace, *cleanupGuard, error) {
	dir := workspaceDir(commit)

	if err := copy.Copy(repoPath, dir, copy.Options{
		Specials:     true,
		NumOfWorkers: int64(workers),
	}); err != nil {
		// A partial copy may exist.
		rmErr := os.RemoveAll(dir)
		return nil, nil, errors.Join(fmt.Errorf("copy of repository %s to %s failed", repoPath, dir), err, rmErr)
	}

	cmd := exec.Command("git", "checkout", "--detach", "--force", commit)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		rmErr := os.RemoveAll(dir)
		return nil, nil, errors.Join(fmt.Errorf("git checkout of commit %s at %s failed, output: %s", commit, dir, out), err, rmErr)
	}

	guard := &cleanupGuard{
		log:     log,
		release: func() error { return os.RemoveAll(dir) },
	}

	return &workspace{path: dir, commit: commit, mode: ModeCopy}, guard, nil
}

// provisionInPlace checks the commit out detached inside the source repository
// itself, discarding uncommitted changes. The caller must hold exclusive access
// to the repository for the whole provision, execute and release cycle.
// The returned guard is a no-op: the shared working directory is restored once,
// after the full sequence, via restoreHead.
func provisionInPlace(repoPath, commit string, log *logrus.Entry) (*workspace, *cleanupGuard, error) {
	cmd := exec.Command("git", "checkout", "--detach", "--force", commit)
	cmd.Dir = repoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("git checkout of commit %s at %s failed, output: %s", commit, repoPath, out), err)
	}

	return &workspace{path: repoPath, commit: commit, mode: ModeInPlace}, &cleanupGuard{log: log}, nil
}

// captureHead returns the repository's current HEAD as a branch name when HEAD
// is symbolic, or as a commit hash when detached.
func captureHead(repoPath string) (string, error) {
	cmd := exec.Command("git", "symbolic-ref", "--quiet", "--short", "HEAD")
	cmd.Dir = repoPath
	if out, err := cmd.Output(); err == nil {
		return strings.TrimSpace(string(out)), nil
	}

	// Detached HEAD
	cmd = exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to capture HEAD of repository %s", repoPath), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// restoreHead checks out the branch or commit previously captured by captureHead.
func restoreHead(repoPath, head string) error {
	cmd := exec.Command("git", "checkout", "--force", head)
	cmd.Dir = repoPath
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Join(fmt.Errorf("git checkout of original HEAD %s at %s failed, output: %s", head, repoPath, out), err)
	}
	return nil
}

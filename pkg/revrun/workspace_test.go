package revrun

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/revrun/revrun/internal/testrepo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutedLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestParseMode(t *testing.T) {
	values := []struct {
		name string
		mode Mode
		ok   bool
	}{
		{"worktree", ModeWorktree, true},
		{"copy", ModeCopy, true},
		{"in-place", ModeInPlace, true},
		{"inplace", ModeInPlace, true},
		{"Worktree", ModeWorktree, true},
		{"container", 0, false},
		{"", 0, false},
	}

	for _, v := range values {
		mode, err := ParseMode(v.name)
		if !v.ok {
			assert.NotNilf(t, err, "Expected an error for mode name %q", v.name)
			continue
		}
		assert.Nilf(t, err, "ParseMode returned an error for %q", v.name)
		assert.Equalf(t, v.mode, mode, "Wrong mode for name %q", v.name)
	}
}

func TestProvisionWorktree(t *testing.T) {
	repo := testrepo.New(t)
	old := repo.Head(t)
	repo.Commit(t, "marker.txt", "new\n", "add marker")

	workspace, guard, err := provisionWorktree(repo.Root, old, mutedLog())
	require.Nil(t, err, "provisionWorktree returned an error")

	assert.Equal(t, old, workspace.commit, "Workspace holds the wrong commit")
	assert.NotEqual(t, repo.Root, workspace.path, "Worktree workspace must not share the source working directory")

	// The workspace holds the old commit's tree, so the marker must be absent.
	_, err = os.Stat(filepath.Join(workspace.path, "marker.txt"))
	assert.True(t, os.IsNotExist(err), "Workspace contains a file the commit does not have")
	_, err = os.Stat(filepath.Join(workspace.path, "README.md"))
	assert.Nil(t, err, "Workspace is missing a file the commit has")

	guard.Release()
	_, err = os.Stat(workspace.path)
	assert.True(t, os.IsNotExist(err), "Workspace directory remains after release")

	// Releasing again must be a no-op.
	guard.Release()
}

func TestProvisionCopy(t *testing.T) {
	repo := testrepo.New(t)
	old := repo.Head(t)
	repo.Commit(t, "marker.txt", "new\n", "add marker")

	workspace, guard, err := provisionCopy(repo.Root, old, 1, mutedLog())
	require.Nil(t, err, "provisionCopy returned an error")

	assert.NotEqual(t, repo.Root, workspace.path, "Copy workspace must not share the source working directory")
	_, err = os.Stat(filepath.Join(workspace.path, "marker.txt"))
	assert.True(t, os.IsNotExist(err), "Workspace contains a file the commit does not have")

	// The copy owns independent repository state, the source HEAD is untouched.
	assert.NotEqual(t, old, repo.Head(t), "Source repository HEAD moved")

	guard.Release()
	_, err = os.Stat(workspace.path)
	assert.True(t, os.IsNotExist(err), "Workspace directory remains after release")
}

func TestProvisionInPlace(t *testing.T) {
	repo := testrepo.New(t)
	old := repo.Head(t)
	repo.Commit(t, "marker.txt", "new\n", "add marker")

	head, err := captureHead(repo.Root)
	require.Nil(t, err, "captureHead returned an error")
	assert.Equal(t, "main", head, "Expected the branch name for a symbolic HEAD")

	workspace, guard, err := provisionInPlace(repo.Root, old, mutedLog())
	require.Nil(t, err, "provisionInPlace returned an error")

	assert.Equal(t, repo.Root, workspace.path, "In-place workspace must reuse the source working directory")
	assert.Equal(t, old, repo.Head(t), "Commit was not checked out")
	_, err = os.Stat(filepath.Join(repo.Root, "marker.txt"))
	assert.True(t, os.IsNotExist(err), "Working directory still contains a newer commit's file")

	guard.Release()

	require.Nil(t, restoreHead(repo.Root, head), "restoreHead returned an error")
	assert.Equal(t, "main", repo.Git(t, "symbolic-ref", "--short", "HEAD"), "Original branch was not restored")
	_, err = os.Stat(filepath.Join(repo.Root, "marker.txt"))
	assert.Nil(t, err, "Restored working directory is missing a file")
}

func TestCaptureHeadDetached(t *testing.T) {
	repo := testrepo.New(t)
	commit := repo.Head(t)
	repo.Git(t, "checkout", "--detach", commit)

	head, err := captureHead(repo.Root)
	require.Nil(t, err, "captureHead returned an error")

	assert.Equal(t, commit, head, "Expected the commit hash for a detached HEAD")
}

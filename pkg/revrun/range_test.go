package revrun

import (
	"testing"

	"github.com/revrun/revrun/internal/testrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRange(t *testing.T) {
	repo := testrepo.New(t)
	first := repo.Head(t)
	second := repo.Commit(t, "a.txt", "a\n", "second")
	third := repo.Commit(t, "b.txt", "b\n", "third")
	fourth := repo.Commit(t, "c.txt", "c\n", "fourth")

	t.Run("Range is oldest first and excludes the start commit", func(t *testing.T) {
		commits, err := resolveRange(repo.Root, first, fourth)
		require.Nil(t, err, "resolveRange returned an error")

		assert.Equal(t, []string{second, third, fourth}, commits, "Wrong commits in range")
	})

	t.Run("Range resolution is deterministic", func(t *testing.T) {
		commits, err := resolveRange(repo.Root, first, "HEAD")
		require.Nil(t, err, "resolveRange returned an error")
		again, err := resolveRange(repo.Root, first, "HEAD")
		require.Nil(t, err, "resolveRange returned an error")

		assert.Equal(t, commits, again, "Repeated resolution returned different commits")
	})

	t.Run("Branch and tag refs resolve", func(t *testing.T) {
		repo.Git(t, "tag", "start-tag", first)
		commits, err := resolveRange(repo.Root, "start-tag", "main")
		require.Nil(t, err, "resolveRange returned an error")

		assert.Len(t, commits, 3, "Wrong number of commits in range")
	})

	t.Run("Empty range is not an error", func(t *testing.T) {
		commits, err := resolveRange(repo.Root, fourth, fourth)
		require.Nil(t, err, "resolveRange returned an error")

		assert.Empty(t, commits, "Expected no commits for an empty range")
	})

	t.Run("Unresolvable refs are rejected", func(t *testing.T) {
		_, err := resolveRange(repo.Root, "no-such-ref", fourth)
		assert.ErrorIs(t, err, ErrRefNotFound, "Expected ErrRefNotFound for bad start ref")

		_, err = resolveRange(repo.Root, first, "no-such-ref")
		assert.ErrorIs(t, err, ErrRefNotFound, "Expected ErrRefNotFound for bad end ref")
	})
}

func TestDiscoverRepo(t *testing.T) {
	repo := testrepo.New(t)
	repo.Commit(t, "nested/deep/file.txt", "x\n", "add nested file")

	t.Run("Repository root is found from a nested directory", func(t *testing.T) {
		root, err := discoverRepo(repo.Root + "/nested/deep")
		require.Nil(t, err, "discoverRepo returned an error")

		assert.Equal(t, repo.Root, root, "Wrong repository root")
	})

	t.Run("Missing repository is an error", func(t *testing.T) {
		_, err := discoverRepo(t.TempDir())
		assert.ErrorIs(t, err, ErrRepoNotFound, "Expected ErrRepoNotFound outside a repository")
	})
}

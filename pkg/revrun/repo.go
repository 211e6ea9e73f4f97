package revrun

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrRepoNotFound is returned when no git repository encloses the given path.
var ErrRepoNotFound = errors.New("no git repository found")

// discoverRepo resolves the root of the git repository enclosing start by
// walking upward until a directory containing a .git entry is found.
func discoverRepo(start string) (string, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to resolve absolute path of %s", start), err)
	}

	for {
		info, err := os.Stat(filepath.Join(current, ".git"))
		if err == nil && (info.IsDir() || info.Mode().IsRegular()) {
			return current, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w at or above %s", ErrRepoNotFound, start)
		}
		current = parent
	}
}

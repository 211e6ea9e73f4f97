package revrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()

	t.Run("Zero exit is a success", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", "echo out; echo err >&2", dir, 0)

		assert.Equal(t, StatusSuccess, outcome.Status, "Wrong status")
		assert.Equal(t, 0, outcome.ExitCode, "Wrong exit code")
		assert.Equal(t, "out\n", outcome.Stdout, "Wrong stdout")
		assert.Equal(t, "err\n", outcome.Stderr, "Wrong stderr")
	})

	t.Run("Nonzero exit is a failure with the observed code", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", "exit 7", dir, 0)

		assert.Equal(t, StatusFailure, outcome.Status, "Wrong status")
		assert.Equal(t, 7, outcome.ExitCode, "Wrong exit code")
	})

	t.Run("The command runs in the workspace directory", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", "pwd", dir, 0)

		assert.Equal(t, StatusSuccess, outcome.Status, "Wrong status")
		assert.Contains(t, outcome.Stdout, dir, "Command did not run in the workspace")
	})

	t.Run("Shell pipelines are interpreted", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", "printf 'a\\nb\\nc\\n' | wc -l | tr -d ' '", dir, 0)

		assert.Equal(t, StatusSuccess, outcome.Status, "Wrong status")
		assert.Equal(t, "3\n", outcome.Stdout, "Pipeline output not captured")
	})

	t.Run("Signal termination maps to 128 plus the signal", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", "kill -TERM $$", dir, 0)

		assert.Equal(t, StatusFailure, outcome.Status, "Wrong status")
		assert.Equal(t, 128+15, outcome.ExitCode, "Wrong exit code for SIGTERM termination")
	})

	t.Run("Invalid output encoding is an error outcome", func(t *testing.T) {
		outcome := runCommand(context.Background(), "c", `printf '\377\376'`, dir, 0)

		assert.Equal(t, StatusError, outcome.Status, "Wrong status")
		assert.NotNil(t, outcome.Err, "Expected a decode error")
	})

	t.Run("Timeout is a failure with the sentinel code", func(t *testing.T) {
		start := time.Now()
		outcome := runCommand(context.Background(), "c", "sleep 10", dir, 100*time.Millisecond)

		assert.Equal(t, StatusFailure, outcome.Status, "Wrong status")
		assert.Equal(t, timeoutExitCode, outcome.ExitCode, "Wrong exit code for a timeout")
		assert.Less(t, time.Since(start), 5*time.Second, "Timeout did not terminate the command")
	})

	t.Run("Cancellation kills the process group", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		outcome := runCommand(ctx, "c", "sleep 10 & wait", dir, 0)

		assert.Equal(t, StatusFailure, outcome.Status, "Wrong status")
		assert.Less(t, time.Since(start), 5*time.Second, "Cancellation did not terminate the command")
	})
}

package revrun

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// timeoutExitCode is the sentinel exit code recorded when a command exceeds the
// configured per-commit timeout.
const timeoutExitCode = 124

// runCommits drives the command over the resolved commit sequence with a
// bounded worker pool and returns the report in range order.
// Per-commit failures never stop the scheduling of later commits. When the
// context is cancelled, in-flight commands are killed, their workspaces are
// released, and commits that never started are recorded as errored, so that the
// report always has one entry per commit.
func (r *Run) runCommits(ctx context.Context, commits []string) Report {
	agg := newAggregator(len(commits))
	sem := semaphore.NewWeighted(int64(r.Workers))

	var wg sync.WaitGroup
	for i, commit := range commits {
		if err := sem.Acquire(ctx, 1); err != nil {
			agg.record(i, Outcome{Commit: commit, Status: StatusError, Err: err})
			continue
		}

		wg.Add(1)
		go func(index int, commit string) {
			defer wg.Done()
			defer sem.Release(1)
			agg.record(index, r.runCommit(ctx, commit))
		}(i, commit)
	}
	wg.Wait()

	return agg.finalize()
}

// runCommit performs one commit's full unit of work: provision a workspace,
// run the command inside it, capture the result and release the workspace.
func (r *Run) runCommit(ctx context.Context, commit string) Outcome {
	log := r.log.WithField("commit", commit)

	workspace, guard, err := r.provision(commit, log)
	if err != nil {
		log.Warnf("Failed to provision workspace - %v", err)
		return Outcome{Commit: commit, Status: StatusError, Err: err}
	}
	defer guard.Release()

	log.Debugf("Running command in %s", workspace.path)
	return runCommand(ctx, commit, r.Command, workspace.path, r.Timeout)
}

// provision creates the workspace for a commit according to the run's mode.
// In-place provisioning holds the repository checkout lock for the whole
// provision, execute and release cycle via the returned guard.
func (r *Run) provision(commit string, log *logrus.Entry) (*workspace, *cleanupGuard, error) {
	switch r.Mode {
	case ModeWorktree:
		return provisionWorktree(r.repoRoot, commit, log)
	case ModeCopy:
		return provisionCopy(r.repoRoot, commit, r.Workers, log)
	case ModeInPlace:
		r.checkoutMu.Lock()
		workspace, guard, err := provisionInPlace(r.repoRoot, commit, log)
		if err != nil {
			r.checkoutMu.Unlock()
			return nil, nil, err
		}
		release := guard.release
		guard.release = func() error {
			defer r.checkoutMu.Unlock()
			if release != nil {
				return release()
			}
			return nil
		}
		return workspace, guard, nil
	}
	return nil, nil, errors.New("invalid provisioning mode")
}

// runCommand spawns the command through the shell with dir as its working
// directory and waits for it to finish. The command runs in its own process
// group so that cancellation also reaches shell-spawned descendants.
func runCommand(ctx context.Context, commit, command, dir string, timeout time.Duration) Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return Outcome{Commit: commit, Status: StatusError, Err: errors.Join(errors.New("failed to spawn command"), err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		// Kill the whole process group, then reap the shell.
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		outcome := Outcome{
			Commit: commit,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Status: StatusFailure,
		}
		if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome.ExitCode = timeoutExitCode
		} else {
			outcome.ExitCode = 128 + int(syscall.SIGKILL)
		}
		return outcome
	}

	outcome := Outcome{
		Commit: commit,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if !utf8.ValidString(outcome.Stdout) || !utf8.ValidString(outcome.Stderr) {
		outcome.Status = StatusError
		outcome.Err = errors.New("command output is not valid UTF-8")
		return outcome
	}

	if waitErr == nil {
		outcome.Status = StatusSuccess
		return outcome
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		outcome.Status = StatusError
		outcome.Err = errors.Join(errors.New("failed to wait for command"), waitErr)
		return outcome
	}

	outcome.Status = StatusFailure
	outcome.ExitCode = exitErr.ExitCode()
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		outcome.ExitCode = 128 + int(status.Signal())
	} else if outcome.ExitCode < 0 {
		outcome.ExitCode = 1
	}
	return outcome
}

package revrun

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Status classifies the result of running the command against one commit.
type Status int

const (
	// StatusSuccess means the command exited with code zero.
	StatusSuccess Status = iota
	// StatusFailure means the command ran but exited nonzero or was killed by a signal.
	StatusFailure
	// StatusError means no usable command result exists for the commit, e.g. because
	// provisioning the workspace failed or the command could not be spawned.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// An Outcome is the result of running the command against a single commit.
type Outcome struct {
	Commit string // The full hash of the commit the command ran against

	ExitCode int    // The command's exit code. Signal terminations map to 128+signal
	Stdout   string // The captured standard output of the command
	Stderr   string // The captured standard error of the command

	Status Status // How this commit's run is classified

	Err error // The provisioning or spawn error, set only when Status is StatusError
}

// A Report holds one outcome per commit of a run, in range order.
type Report struct {
	Outcomes []Outcome // One entry per commit, index-aligned with the resolved range

	Succeeded int // How many commits ran the command successfully
	Failed    int // How many commits saw the command exit nonzero
	Errored   int // How many commits could not be run at all
}

// AllPassed reports whether every commit in the range ran the command successfully.
func (r Report) AllPassed() bool {
	return r.Failed == 0 && r.Errored == 0
}

// Summary returns a one-line aggregate of the report's counts.
func (r Report) Summary() string {
	return fmt.Sprintf("%d commits: %d succeeded, %d failed, %d errored", len(r.Outcomes), r.Succeeded, r.Failed, r.Errored)
}

// Present writes the report to w, one line per commit in range order.
// Failed commits are followed by their captured standard error, if any.
func (r Report) Present(w io.Writer) {
	for _, outcome := range r.Outcomes {
		switch outcome.Status {
		case StatusSuccess:
			fmt.Fprintf(w, "Commit %s successful\n", outcome.Commit)
		case StatusFailure:
			fmt.Fprintf(w, "Commit %s failed with exit code %d\n", outcome.Commit, outcome.ExitCode)
			if stderr := strings.TrimSpace(outcome.Stderr); stderr != "" {
				fmt.Fprintln(w, stderr)
			}
		case StatusError:
			fmt.Fprintf(w, "Commit %s could not be run - %v\n", outcome.Commit, outcome.Err)
		}
	}
}

// An aggregator collects outcomes keyed by their position in the commit sequence,
// so that concurrent workers completing out of order still produce a report in
// range order.
type aggregator struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func newAggregator(size int) *aggregator {
	return &aggregator{
		outcomes: make([]Outcome, size),
	}
}

// record stores the outcome for the commit at the given sequence index.
func (a *aggregator) record(index int, outcome Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[index] = outcome
}

// finalize produces the report with its aggregate counts.
func (a *aggregator) finalize() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := Report{Outcomes: a.outcomes}
	for _, outcome := range a.outcomes {
		switch outcome.Status {
		case StatusSuccess:
			report.Succeeded++
		case StatusFailure:
			report.Failed++
		case StatusError:
			report.Errored++
		}
	}
	return report
}

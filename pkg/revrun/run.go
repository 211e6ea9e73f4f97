package revrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrModeConflict is returned when in-place provisioning is combined with more
// than one worker. In-place checkouts mutate the source repository's shared
// HEAD and working tree, which rules out concurrent dispatch.
var ErrModeConflict = errors.New("in-place mode requires a single worker")

// ErrRestoreFailed is returned when the repository's original HEAD could not be
// restored after an in-place run. The working directory may be left checked out
// at an arbitrary commit of the range.
var ErrRestoreFailed = errors.New("failed to restore original HEAD")

type runYaml struct {
	Start string `yaml:"start"`
	End   string `yaml:"end" default:"HEAD"`

	Command string `yaml:"command"`

	Path string `yaml:"path"`
	Mode string `yaml:"mode" default:"worktree"`

	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// GetRunFromConfig reads in a run config in yaml format from a reader and
// initializes the corresponding run struct.
func GetRunFromConfig(r io.Reader) (*Run, error) {
	var config runYaml

	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}
	if err := defaults.Set(&config); err != nil {
		return nil, err
	}

	mode, err := ParseMode(config.Mode)
	if err != nil {
		return nil, err
	}

	return &Run{
		Start: config.Start,
		End:   config.End,

		Command: config.Command,

		RepoPath: config.Path,
		Mode:     mode,

		Workers: config.Workers,
		Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
	}, nil
}

// A Run represents one pass of a command over a revision range.
// For a manually created run to work, at least Start and Command have to be
// populated.
type Run struct {
	Start string // The start of the range, exclusive. Any ref the repository resolves
	End   string // The end of the range, inclusive. Defaults to HEAD if empty

	Command string // The shell command to run against every commit in the range

	RepoPath string // The path at or below which the repository is discovered. Defaults to the current directory
	Mode     Mode   // How workspaces are provisioned

	Workers int           // How many commits may run concurrently, or 0 for the host's CPU count
	Timeout time.Duration // Per-commit command timeout, or 0 for no timeout

	Log *logrus.Logger // The log to which information gets printed to

	log      *logrus.Entry
	repoRoot string // The discovered repository root

	checkoutMu sync.Mutex // Serializes in-place checkouts of the shared working tree
}

// Execute resolves the revision range and runs the command against every commit
// in it, oldest first. The returned report always holds one outcome per commit
// of the range, in range order, regardless of the dispatch order.
//
// Per-commit failures are recorded in the report and never abort the run;
// Execute returns a non-nil error only for startup failures (unresolvable refs,
// no repository, conflicting configuration) and, in in-place mode, for a failed
// restore of the original HEAD. In the latter case the report of the completed
// run is returned alongside the error.
func (r *Run) Execute(ctx context.Context) (Report, error) {
	if r.Log == nil {
		// Mute logger
		r.Log = logrus.New()
		r.Log.SetOutput(io.Discard)
	}
	r.log = r.Log.WithField("range", fmt.Sprintf("%s..%s", r.Start, r.End))

	if r.End == "" {
		r.End = "HEAD"
	}
	if r.Workers <= 0 {
		r.Workers = runtime.NumCPU()
	}
	if !r.Mode.isolated() && r.Workers > 1 {
		return Report{}, ErrModeConflict
	}

	path := r.RepoPath
	if path == "" {
		path = "."
	}
	var err error
	r.repoRoot, err = discoverRepo(path)
	if err != nil {
		return Report{}, err
	}
	r.log.Debugf("Discovered repository at %s", r.repoRoot)

	commits, err := resolveRange(r.repoRoot, r.Start, r.End)
	if err != nil {
		return Report{}, err
	}
	if len(commits) == 0 {
		r.log.Info("No commits in range")
		return Report{}, nil
	}
	r.log.Infof("Running %q against %d commits with %d workers in %s mode", r.Command, len(commits), r.Workers, r.Mode)

	var originalHead string
	if r.Mode == ModeInPlace {
		originalHead, err = captureHead(r.repoRoot)
		if err != nil {
			return Report{}, err
		}
		r.log.Debugf("Captured original HEAD %s", originalHead)
	}

	report := r.runCommits(ctx, commits)

	if r.Mode == ModeInPlace {
		if err := restoreHead(r.repoRoot, originalHead); err != nil {
			// The report of the completed run is still returned so the caller
			// can present it before surfacing the restore failure.
			return report, errors.Join(ErrRestoreFailed, err)
		}
		r.log.Debugf("Restored original HEAD %s", originalHead)
	}

	r.log.Info(report.Summary())
	return report, nil
}

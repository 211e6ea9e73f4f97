/*
Package revrun provides a Go interface for running a command against every
commit in a git revision range.

Runs can most easily be created by passing in a run config to [GetRunFromConfig],
but can also be created manually by populating a [Run] struct.
For a manually created run to work, at least the following fields have to be
populated:
  - Start
  - Command

After a run struct was acquired, it can be started using [Run.Execute].
Every commit of the two-dot range Start..End, ordered oldest first, gets its own
workspace containing that commit's tree, the command is run inside it through
the shell, and the workspace is removed again once the command finished.

How workspaces are provisioned is controlled by the run's [Mode]: [ModeWorktree]
and [ModeCopy] give every commit an independent directory and allow concurrent
execution across multiple workers, while [ModeInPlace] reuses the source
repository's own working directory, runs strictly serially and restores the
original HEAD once the whole range was processed.

[Run.Execute] returns a [Report] holding one [Outcome] per commit in range
order. Failing commits never stop the run; the report records their exit codes
and captured output and the caller decides what to make of them.
*/
package revrun

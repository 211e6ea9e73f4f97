package cmd

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/revrun/revrun/pkg/revrun"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanAgree bool
var cleanPath string

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"prune", "cleanup"},
	Short:   "Remove leftover workspaces of interrupted runs",
	Long: `This command removes leftover workspace directories which a crashed or killed
run could not clean up itself, and prunes their stale worktree registrations
from the repository.`,
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := os.ReadDir(os.TempDir())
		if err != nil {
			logrus.Fatalf("Couldn't list the temp directory - %v", err)
		}

		var leftovers []string
		for _, entry := range entries {
			if entry.IsDir() && strings.HasPrefix(entry.Name(), revrun.WorkspacePrefix) {
				leftovers = append(leftovers, filepath.Join(os.TempDir(), entry.Name()))
			}
		}

		if len(leftovers) == 0 {
			logrus.Info("No leftover workspaces to remove. Exiting...")
			return
		}

		logrus.Infof("About to delete %d leftover workspaces.", len(leftovers))

		prompt := promptui.Prompt{
			Label:     "Proceed",
			IsConfirm: true,
		}

		if !cleanAgree {
			_, err := prompt.Run()
			if err != nil {
				logrus.Info("Exiting...")
				os.Exit(0)
			}
		}

		for _, dir := range leftovers {
			logrus.Infof("Deleting workspace %s", dir)
			if err := os.RemoveAll(dir); err != nil {
				logrus.Warnf("Failed to remove workspace %s - %v", dir, err)
			}
		}

		// Drop stale worktree registrations the deleted workspaces may have
		// left behind in the repository's metadata.
		pruneCmd := exec.Command("git", "worktree", "prune")
		pruneCmd.Dir = cleanPath
		if out, err := pruneCmd.CombinedOutput(); err != nil {
			logrus.Warnf("Failed to prune worktree metadata at %s - %v, output: %s", cleanPath, err, out)
		}

		logrus.Info("Done cleaning up.")
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVarP(&cleanPath, "path", "p", ".", "The repository whose worktree metadata gets pruned")
	cleanCmd.Flags().BoolVarP(&cleanAgree, "assume-yes", "y", false, `Bypass "Are you sure?" message.`)
}

package cli

import (
	"errors"
	"fmt"
	"time"

	"devver/internal/client/ancestor"
	"devver/internal/client/changeset"
	"devver/internal/client/git"
	"devver/internal/client/transfer"
	"devver/internal/models"

	"github.com/spf13/cobra"
)

// ErrDeployFailed is returned when the server reports an unsuccessful deploy.
var ErrDeployFailed = errors.New("deployment failed")

func (c *CLI) deployCommand() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Ship the current commit's changes and start its preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			started := time.Now()

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			repo := git.New(c.Runner, c.Dir)
			if branch == "" {
				if branch, err = repo.CurrentBranch(ctx); err != nil {
					return err
				}
			}
			commit, err := repo.CurrentCommit(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Out, "Deploying %s %s@%s\n", c.cyan(cfg.Project), branch, models.ShortHash(commit))

			client := transfer.New(c.serverURL(cfg))

			deployed, err := client.Branches(ctx, cfg.Project)
			if err != nil {
				fmt.Fprintf(c.Err, "%s could not list deployed branches, sending every file: %v\n", c.yellow("warning:"), err)
				deployed = nil
			}

			base, ok := ancestor.Resolve(ctx, repo, branch, commit, deployed)
			switch {
			case !ok:
				fmt.Fprintln(c.Out, c.gray("  no deployed ancestor, full deploy"))
			case base.FromParent:
				fmt.Fprintln(c.Out, c.gray("  base: parent commit "+models.ShortHash(base.Commit)))
			default:
				fmt.Fprintln(c.Out, c.gray("  base: "+base.Branch+"@"+models.ShortHash(base.Commit)))
			}

			cs, err := changeset.Build(ctx, repo, base.Commit, changeset.Options{
				Ignore: cfg.Ignore,
				Warn: func(path string, err error) {
					fmt.Fprintf(c.Err, "%s skipping %s: %v\n", c.yellow("warning:"), path, err)
				},
			})
			if err != nil {
				return err
			}
			prepared := time.Since(started)

			req := models.DeployRequest{
				Project:      cfg.Project,
				Branch:       branch,
				CommitHash:   commit,
				Files:        cs.Files,
				DeletedFiles: cs.DeletedFiles,
			}
			if ok {
				req.BaseCommitHash = base.Commit
			}

			fmt.Fprintf(c.Out, "  sending %d files, deleting %d\n", len(cs.Files), len(cs.DeletedFiles))

			result, err := client.Deploy(ctx, req, cfg)
			if err != nil {
				msg := result.Message
				if msg == "" {
					msg = err.Error()
				}
				fmt.Fprintf(c.Err, "%s %s\n", c.red("✗"), msg)
				return fmt.Errorf("%w: %v", ErrDeployFailed, err)
			}
			if !result.Success {
				fmt.Fprintf(c.Err, "%s %s\n", c.red("✗"), result.Message)
				return ErrDeployFailed
			}

			fmt.Fprintf(c.Out, "%s Deployed %s\n", c.green("✓"), c.cyan(result.URL))
			fmt.Fprintf(c.Out, "  files changed: %d\n", result.FilesChanged)
			if result.DependenciesReinstalled {
				fmt.Fprintln(c.Out, "  dependencies reinstalled")
			}
			if result.Message != "" {
				fmt.Fprintf(c.Out, "  %s %s\n", c.yellow("note:"), result.Message)
			}
			fmt.Fprintln(c.Out, c.gray(fmt.Sprintf("  prep %s, server %s, total %s",
				prepared.Round(time.Millisecond),
				(time.Duration(result.Duration)*time.Millisecond).Round(time.Millisecond),
				time.Since(started).Round(time.Millisecond))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch name to deploy as (default: current branch)")
	return cmd
}

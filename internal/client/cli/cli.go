// Package cli is the devver command line: init, setup, deploy and status.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"

	"devver/internal/client/git"
	"devver/internal/client/transfer"
	"devver/internal/config"
	"devver/internal/models"
	"devver/internal/runner"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DefaultServerPort is the port the deployment server listens on.
const DefaultServerPort = 3333

// ServerEnv overrides the server URL derived from the project config.
const ServerEnv = "DEVVER_SERVER"

// CLI holds the injectable dependencies of every command.
type CLI struct {
	Out    io.Writer
	Err    io.Writer
	Dir    string
	Runner runner.Runner
	Getenv func(string) string

	server string

	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a CLI bound to the process's working directory and stdio.
func New() *CLI {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return &CLI{
		Out:    os.Stdout,
		Err:    os.Stderr,
		Dir:    dir,
		Runner: runner.NewExecRunner(),
		Getenv: os.Getenv,
		green:  color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		gray:   color.New(color.FgHiBlack).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI without colors writing to the given buffers.
func NewForTesting(out, errOut io.Writer, dir string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:    out,
		Err:    errOut,
		Dir:    dir,
		Runner: runner.NewExecRunner(),
		Getenv: func(string) string { return "" },
		green:  noColor,
		yellow: noColor,
		cyan:   noColor,
		gray:   noColor,
		red:    noColor,
	}
}

// Command builds the root command.
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "devver",
		Short:         "Deploy every commit of every branch as its own preview",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.server, "server", "", "deployment server URL (default $"+ServerEnv+" or http://<container.host>:3333)")

	root.AddCommand(c.initCommand(), c.setupCommand(), c.deployCommand(), c.statusCommand())
	return root
}

// Execute runs args and returns the process exit code.
func (c *CLI) Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := c.Command()
	root.SetArgs(args)
	root.SetOut(c.Out)
	root.SetErr(c.Err)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(c.Err, "%s %v\n", c.red("Error:"), err)
		return 1
	}
	return 0
}

func (c *CLI) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create " + config.ProjectConfigFile + " for this repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo := git.New(c.Runner, c.Dir)
			if !repo.IsRepository(ctx) {
				return fmt.Errorf("not a git repository, run 'git init' first")
			}

			project := projectNameFromDir(c.Dir)
			if remote, err := repo.RemoteURL(ctx); err == nil {
				if name := projectNameFromRemote(remote); name != "" {
					project = name
				}
			}

			path, _, err := config.InitProject(c.Dir, project)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Out, "%s Created %s (project %s)\n", c.green("✓"), filepath.Base(path), c.cyan(project))
			fmt.Fprintln(c.Out, "Next steps:")
			fmt.Fprintf(c.Out, "  1. Edit %s with your server and start command\n", filepath.Base(path))
			fmt.Fprintln(c.Out, "  2. Run 'devver setup' once, then 'devver deploy'")
			return nil
		},
	}
}

func (c *CLI) setupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Clone the project repository on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			client := transfer.New(c.serverURL(cfg))
			fmt.Fprintf(c.Out, "Setting up %s on %s\n", c.cyan(cfg.Project), client.BaseURL())

			result, err := client.Setup(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("setup failed: %w", err)
			}
			fmt.Fprintf(c.Out, "%s %s\n", c.green("✓"), result.Message)
			if result.Path != "" {
				fmt.Fprintf(c.Out, "  %s\n", c.gray(result.Path))
			}
			return nil
		},
	}
}

func (c *CLI) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the project's deployments and their process state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			deployments, err := transfer.New(c.serverURL(cfg)).Deployments(cmd.Context(), cfg.Project)
			if err != nil {
				return fmt.Errorf("failed to fetch deployments: %w", err)
			}

			fmt.Fprintf(c.Out, "Project: %s (%s)\n", c.cyan(cfg.Project), cfg.Runtime)
			if len(deployments) == 0 {
				fmt.Fprintln(c.Out, "No deployments yet, run 'devver deploy'")
				return nil
			}
			for _, d := range deployments {
				fmt.Fprintf(c.Out, "  %-20s %s  %-8s %s\n", d.Branch, d.CommitShort, c.statusColor(d.Status), d.URL)
			}
			return nil
		},
	}
}

func (c *CLI) statusColor(status models.EnumProcessStatus) string {
	switch status {
	case models.ProcessStatusOnline:
		return c.green(string(status))
	case models.ProcessStatusError:
		return c.red(string(status))
	}
	return c.yellow(string(status))
}

func (c *CLI) loadConfig() (models.DeploymentConfig, error) {
	path, ok := config.FindProjectConfig(c.Dir)
	if !ok {
		return models.DeploymentConfig{}, fmt.Errorf("%s not found, run 'devver init' first", config.ProjectConfigFile)
	}
	return config.LoadProject(path)
}

// serverURL resolves --server, then $DEVVER_SERVER, then the config's
// container host on the default port.
func (c *CLI) serverURL(cfg models.DeploymentConfig) string {
	if c.server != "" {
		return c.server
	}
	if env := c.Getenv(ServerEnv); env != "" {
		return env
	}
	host := cfg.Container.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, DefaultServerPort)
}

var (
	remoteNamePattern = regexp.MustCompile(`[/:]([^/:]+?)(\.git)?/?$`)
	invalidNameChars  = regexp.MustCompile(`[^a-z0-9-]+`)
)

func projectNameFromRemote(remote string) string {
	m := remoteNamePattern.FindStringSubmatch(strings.TrimSpace(remote))
	if m == nil {
		return ""
	}
	return sanitizeProjectName(m[1])
}

func projectNameFromDir(dir string) string {
	if name := sanitizeProjectName(filepath.Base(dir)); name != "" {
		return name
	}
	return "my-app"
}

// sanitizeProjectName maps a name onto a DNS-1123 label.
func sanitizeProjectName(name string) string {
	name = invalidNameChars.ReplaceAllString(strings.ToLower(name), "-")
	name = strings.Trim(name, "-")
	if len(name) > 63 {
		name = strings.Trim(name[:63], "-")
	}
	return name
}

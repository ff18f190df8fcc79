// Package cli provides the cobra command scaffolding shared by the
// dfu-util and dfu-suffix binaries, adapted from the teacher's
// cmd/root.go Command/baseCommand/Cli pattern.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/dfuerr"
)

// Command is one node in the command tree: it wires itself into a
// parent Cli and exposes the cobra.Command it owns.
type Command interface {
	init(cli *Cli)
	getCommand() *cobra.Command
}

type globalOptions struct {
	Quiet   bool
	Verbose bool
}

type baseCommand struct {
	cmd *cobra.Command
	cli *Cli
}

func (c *baseCommand) init(cli *Cli) {
	c.cli = cli
}

func (c *baseCommand) getCommand() *cobra.Command {
	return c.cmd
}

func (c *baseCommand) AddCommand(command Command) {
	c.cmd.AddCommand(command.getCommand())
}

func newBaseCommand(cmd *cobra.Command) *baseCommand {
	return &baseCommand{cmd: cmd}
}

// Cli is the root of one binary's command tree plus whatever options
// every subcommand of that binary needs. dfu-util and dfu-suffix each
// build their own via NewDfuUtilCli/NewDfuSuffixCli.
type Cli struct {
	*baseCommand
	globalOptions
}

func (c *Cli) AddCommand(command Command) {
	command.init(c)
	c.baseCommand.AddCommand(command)
}

// InitLogging sets the jww stdout threshold from --quiet/--verbose,
// following the teacher's Cli.InitLogging.
func (c *Cli) InitLogging() {
	if c.Verbose {
		jww.SetStdoutThreshold(jww.LevelDebug)
	} else if c.Quiet {
		jww.SetStdoutThreshold(jww.LevelError)
	} else {
		jww.SetStdoutThreshold(jww.LevelInfo)
	}
}

// Execute runs the command tree and exits the process with the exit
// code dfuerr.ExitCode derives from whatever error (if any) surfaced,
// so every dfuerr.Kind maps to one of the sysexits.h codes EX_USAGE,
// EX_IOERR or EX_SOFTWARE on the way out of main().
func (c *Cli) Execute() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(dfuerr.ExitCode(err))
	}
}

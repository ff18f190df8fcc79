package cli

import (
	"github.com/spf13/cobra"
)

// suffixOptions are the identity fields --add writes into the DFU
// suffix/prefix and --check/--delete read back out, per suffix.c's
// getopt table.
type suffixOptions struct {
	File             string
	VID              uint16
	PID              uint16
	DID              uint16
	Stellaris        bool
	StellarisAddress uint32
}

// DfuSuffixCli is the root of the `dfu-suffix` command tree.
type DfuSuffixCli struct {
	*Cli
	suffixOptions
}

// NewDfuSuffixCli builds the dfu-suffix command tree: check, add,
// delete, following the same baseCommand wiring as NewDfuUtilCli.
func NewDfuSuffixCli() *DfuSuffixCli {
	c := &DfuSuffixCli{Cli: &Cli{}}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:     "dfu-suffix",
		Short:   "Add, check, or remove a DFU suffix (and optional Stellaris prefix) on a firmware file",
		Version: "0.1",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.InitLogging()
		},
	})
	c.cmd.SilenceUsage = true
	c.cmd.SilenceErrors = true

	c.cmd.PersistentFlags().BoolVarP(&c.Quiet, "quiet", "q", false, "suppress all output")
	c.cmd.PersistentFlags().BoolVarP(&c.Verbose, "verbose", "v", false, "print protocol trace")
	c.cmd.PersistentFlags().StringVarP(&c.File, "file", "D", "", "firmware file to operate on")

	c.AddCommand(newSuffixCheckCommand(c))
	c.AddCommand(newSuffixAddCommand(c))
	c.AddCommand(newSuffixDeleteCommand(c))

	return c
}

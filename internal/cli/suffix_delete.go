package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfufile"
)

type suffixDeleteCommand struct {
	*baseCommand
	root *DfuSuffixCli
}

func newSuffixDeleteCommand(root *DfuSuffixCli) *suffixDeleteCommand {
	c := &suffixDeleteCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the DFU suffix (and Stellaris prefix, if -T) from a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	c.cmd.Flags().BoolVarP(&c.root.Stellaris, "stellaris", "T", false, "also strip a leading Stellaris prefix")
	return c
}

func (c *suffixDeleteCommand) run() error {
	if c.root.File == "" {
		return dfuerr.New(dfuerr.KindUsage, "no file specified; use --file")
	}

	img, err := dfufile.Load(c.root.File, dfufile.LoadOptions{
		RequireSuffix: true,
		ExpectPrefix:  c.root.Stellaris,
	})
	if err != nil {
		return err
	}

	if err := dfufile.Store(c.root.File, img, dfufile.StoreOptions{}); err != nil {
		return err
	}

	fmt.Printf("Suffix removed from %s\n", c.root.File)
	return nil
}
